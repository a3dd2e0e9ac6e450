package testsupport

import (
	"context"
	"sync"

	"paperling/internal/services/docling"
)

// StubConverter is a scripted docling.Converter.
type StubConverter struct {
	mu      sync.Mutex
	results map[int64]string
	errs    map[int64]error
	// hook runs before each conversion returns; it may block or panic.
	hook  func(ctx context.Context, req docling.Request)
	calls []docling.Request
}

// NewStubConverter returns a converter with no scripted results.
func NewStubConverter() *StubConverter {
	return &StubConverter{results: map[int64]string{}, errs: map[int64]error{}}
}

// Convert implements docling.Converter.
func (s *StubConverter) Convert(ctx context.Context, req docling.Request) (string, error) {
	s.mu.Lock()
	s.calls = append(s.calls, req)
	hook := s.hook
	s.mu.Unlock()

	if hook != nil {
		hook(ctx, req)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err, ok := s.errs[req.DocumentID]; ok {
		return "", err
	}
	if text, ok := s.results[req.DocumentID]; ok {
		return text, nil
	}
	return "# converted\n", nil
}

// SetResult scripts the markdown returned for a document.
func (s *StubConverter) SetResult(id int64, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results[id] = text
}

// SetError scripts a failure for a document. A nil err clears it.
func (s *StubConverter) SetError(id int64, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.errs, id)
		return
	}
	s.errs[id] = err
}

// SetHook installs a hook run during each conversion.
func (s *StubConverter) SetHook(hook func(ctx context.Context, req docling.Request)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hook = hook
}

// Calls returns the conversions requested so far.
func (s *StubConverter) Calls() []docling.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]docling.Request(nil), s.calls...)
}
