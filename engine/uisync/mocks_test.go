package uisync

import (
	"context"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/watchdeck/watchdeck/engine/action"
	"github.com/watchdeck/watchdeck/engine/core"
)

// MockView implements View for testing
type MockView struct {
	mock.Mock

	mu   sync.Mutex
	btns []Button
}

func (m *MockView) ShowAlert(a Alert) {
	m.Called(a)
}

func (m *MockView) FillStatusbar(job core.JobName, tmpl string) {
	m.Called(job, tmpl)
}

func (m *MockView) SetTitles(containerID, tmpl string) {
	m.Called(containerID, tmpl)
}

func (m *MockView) SetSpinner(busy bool) {
	m.Called(busy)
}

func (m *MockView) SetActionButton(b Button) {
	m.mu.Lock()
	m.btns = append(m.btns, b)
	m.mu.Unlock()
	m.Called(b)
}

// permissive accepts every render call.
func (m *MockView) permissive() *MockView {
	m.On("ShowAlert", mock.Anything).Return()
	m.On("FillStatusbar", mock.Anything, mock.Anything).Return()
	m.On("SetTitles", mock.Anything, mock.Anything).Return()
	m.On("SetSpinner", mock.Anything).Return()
	m.On("SetActionButton", mock.Anything).Return()
	return m
}

// buttons returns the button affordances in call order.
func (m *MockView) buttons() []Button {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Button(nil), m.btns...)
}

// scriptedSender answers each verb from a queue; the last answer repeats.
// A verb with an error fails every call.
type scriptedSender struct {
	mu      sync.Mutex
	answers map[action.Verb][]*action.Response
	errs    map[action.Verb]error
	calls   int
}

func newScriptedSender() *scriptedSender {
	return &scriptedSender{
		answers: make(map[action.Verb][]*action.Response),
		errs:    make(map[action.Verb]error),
	}
}

func (s *scriptedSender) fail(verb action.Verb, err error) *scriptedSender {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errs[verb] = err
	return s
}

func (s *scriptedSender) script(verb action.Verb, answers ...*action.Response) *scriptedSender {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.answers[verb] = answers
	return s
}

func (s *scriptedSender) Send(_ context.Context, _ core.JobName, verb action.Verb, _ action.Args) (*action.Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if err := s.errs[verb]; err != nil {
		return nil, err
	}
	q := s.answers[verb]
	if len(q) == 0 {
		return &action.Response{Status: action.StatusDone}, nil
	}
	r := q[0]
	if len(q) > 1 {
		s.answers[verb] = q[1:]
	}
	return r, nil
}

func (s *scriptedSender) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}
