package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/globo/viewer/internal/domain"
	"github.com/globo/viewer/internal/geomap"
	"github.com/globo/viewer/internal/layer"
	"github.com/globo/viewer/internal/mapview"
	"github.com/globo/viewer/internal/metrics"
)

var (
	ErrSessionClosed = errors.New("session closed")
	ErrInvalidInput  = errors.New("input is not valid geojson")
)

// simplifyFailure is what the user sees for any failed simplify call
const simplifyFailure = "Call to /multipolygon failed"

// RequestKind names the two request flows
type RequestKind string

const (
	KindSimplify RequestKind = "simplify"
	KindCount    RequestKind = "count"
)

// ResponseOrder decides what happens when responses overtake each other
type ResponseOrder int

const (
	// LastArrival renders every successful response as it arrives
	LastArrival ResponseOrder = iota
	// LatestIssued drops responses to requests older than the one on screen
	LatestIssued
)

// ParseResponseOrder parses "last-arrival" or "latest-issued"
func ParseResponseOrder(s string) (ResponseOrder, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "last-arrival":
		return LastArrival, nil
	case "latest-issued":
		return LatestIssued, nil
	default:
		return LastArrival, fmt.Errorf("unknown response order %q", s)
	}
}

// SessionConfig configures a viewing session
type SessionConfig struct {
	Map            geomap.Options
	Order          ResponseOrder
	RequestTimeout time.Duration
}

// View is everything a client needs to paint the session
type View struct {
	Form    FormState        `json:"form"`
	Info    *float64         `json:"info"`
	Error   string           `json:"error,omitempty"`
	Issued  uint64           `json:"issued"`
	Applied uint64           `json:"applied"`
	Map     mapview.Snapshot `json:"map"`
}

// Session is one operator's viewer: the form, the latest result, the
// hover info and the map view. A single goroutine owns all of that
// state; requests run on their own goroutines and post their responses
// back to it, so map mutations never interleave.
type Session struct {
	backend Backend
	cfg     SessionConfig
	logger  *zap.Logger
	ctrl    *mapview.Controller

	events    chan func()
	quit      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
	inflight  sync.WaitGroup
	issued    atomic.Uint64

	// owned by the loop goroutine
	form      FormState
	inputText string
	inputDoc  *domain.Document
	result    *domain.Document
	info      *float64
	lastErr   string
	applied   uint64
}

// NewSession creates a session and starts its event loop
func NewSession(backend Backend, layers *layer.Manager, cfg SessionConfig, logger *zap.Logger) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Session{
		backend: backend,
		cfg:     cfg,
		logger:  logger,
		events:  make(chan func()),
		quit:    make(chan struct{}),
		done:    make(chan struct{}),
		form:    DefaultForm(),
	}
	s.ctrl = mapview.New(layers, mapview.Options{
		Map:          cfg.Map,
		OnHoverCount: s.onHoverCount,
		Logger:       logger,
	})
	go s.loop()
	return s
}

func (s *Session) loop() {
	defer close(s.done)
	for {
		select {
		case fn := <-s.events:
			fn()
		case <-s.quit:
			s.ctrl.Unmount()
			return
		}
	}
}

// do runs fn on the loop goroutine and waits for it
func (s *Session) do(ctx context.Context, fn func()) error {
	ran := make(chan struct{})
	task := func() {
		defer close(ran)
		fn()
	}
	select {
	case s.events <- task:
	case <-s.done:
		return ErrSessionClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	// a received task always runs to completion
	<-ran
	return nil
}

// post queues fn without waiting; false once the session is closed
func (s *Session) post(fn func()) bool {
	select {
	case s.events <- fn:
		return true
	case <-s.done:
		return false
	}
}

// Close stops the loop and unmounts the map. Responses still in flight
// are discarded when they arrive.
func (s *Session) Close() {
	s.closeOnce.Do(func() { close(s.quit) })
	<-s.done
}

// Wait blocks until every in-flight request has finished
func (s *Session) Wait() {
	s.inflight.Wait()
}

// Form returns the current form snapshot
func (s *Session) Form(ctx context.Context) (FormState, error) {
	var form FormState
	err := s.do(ctx, func() { form = s.form })
	return form, err
}

// Change applies one field edit
func (s *Session) Change(ctx context.Context, c FieldChange) (FormState, error) {
	var (
		form     FormState
		applyErr error
	)
	if err := s.do(ctx, func() {
		next, err := s.form.Apply(c)
		if err != nil {
			applyErr = err
			form = s.form
			return
		}
		s.form = next
		form = next
	}); err != nil {
		return FormState{}, err
	}
	return form, applyErr
}

// Upload replaces the input field with an uploaded file's contents
func (s *Session) Upload(ctx context.Context, data []byte) (FormState, error) {
	return s.Change(ctx, FieldChange{Name: FieldInput, Value: string(data)})
}

// Simplify issues a simplify request for the current form and returns
// its sequence number
func (s *Session) Simplify(ctx context.Context) (uint64, error) {
	return s.submit(ctx, KindSimplify, FieldInput, FieldPrecision)
}

// Count issues a count request for the current form and returns its
// sequence number
func (s *Session) Count(ctx context.Context) (uint64, error) {
	return s.submit(ctx, KindCount, FieldInput, FieldPrecision, FieldFirstDate, FieldSecondDate)
}

func (s *Session) submit(ctx context.Context, kind RequestKind, required ...string) (uint64, error) {
	var (
		form     FormState
		input    *domain.Document
		checkErr error
	)
	if err := s.do(ctx, func() {
		form = s.form
		if checkErr = form.requireFields(required...); checkErr != nil {
			return
		}
		input, checkErr = s.input()
	}); err != nil {
		return 0, err
	}
	if checkErr != nil {
		return 0, checkErr
	}

	seq := s.issued.Add(1)
	metrics.PipelineRequestsTotal.WithLabelValues(string(kind)).Inc()
	s.logger.Info("Request issued",
		zap.String("kind", string(kind)),
		zap.Uint64("seq", seq),
		zap.String("precision", form.Precision))

	s.inflight.Add(1)
	go s.request(kind, seq, form, input)
	return seq, nil
}

// request sends form; input is the document parsed from form.Input
func (s *Session) request(kind RequestKind, seq uint64, form FormState, input *domain.Document) {
	defer s.inflight.Done()

	ctx := context.Background()
	if s.cfg.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.RequestTimeout)
		defer cancel()
	}

	start := time.Now()
	body := []byte(form.Input)
	var (
		doc *domain.Document
		err error
	)
	switch kind {
	case KindSimplify:
		doc, err = s.backend.Simplify(ctx, form.Precision, body)
	case KindCount:
		doc, err = s.backend.Count(ctx, form.Precision, form.FirstDate, form.SecondDate, body)
	}
	metrics.PipelineDurationMs.WithLabelValues(string(kind)).Observe(float64(time.Since(start).Milliseconds()))

	if !s.post(func() { s.deliver(kind, seq, input, doc, err) }) {
		metrics.PipelineResponsesTotal.WithLabelValues(string(kind), "discarded").Inc()
		s.logger.Debug("Response discarded after close",
			zap.String("kind", string(kind)), zap.Uint64("seq", seq))
	}
}

// deliver runs on the loop goroutine
func (s *Session) deliver(kind RequestKind, seq uint64, input, doc *domain.Document, err error) {
	if s.cfg.Order == LatestIssued && seq < s.applied {
		metrics.PipelineResponsesTotal.WithLabelValues(string(kind), "stale").Inc()
		s.logger.Debug("Stale response dropped",
			zap.Uint64("seq", seq), zap.Uint64("applied", s.applied))
		return
	}
	if err != nil {
		metrics.PipelineResponsesTotal.WithLabelValues(string(kind), "failed").Inc()
		s.lastErr = failureMessage(kind, err)
		s.logger.Warn("Request failed",
			zap.String("kind", string(kind)), zap.Uint64("seq", seq), zap.Error(err))
		return
	}

	metrics.PipelineResponsesTotal.WithLabelValues(string(kind), "applied").Inc()
	s.applied = seq
	s.result = doc
	s.lastErr = ""
	s.render(input)
}

func failureMessage(kind RequestKind, err error) string {
	if kind == KindSimplify {
		return simplifyFailure
	}
	var be *BackendError
	if errors.As(err, &be) {
		return be.Body
	}
	return err.Error()
}

// input parses the form's input, reusing the previous document while
// the text is unchanged so the base layer keeps its reference
func (s *Session) input() (*domain.Document, error) {
	if s.inputDoc != nil && s.inputText == s.form.Input {
		return s.inputDoc, nil
	}
	doc, err := domain.ParseDocument([]byte(s.form.Input))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	s.inputText, s.inputDoc = s.form.Input, doc
	return doc, nil
}

// render draws the result over the input it was requested with, not
// whatever the form holds now
func (s *Session) render(input *domain.Document) {
	props := mapview.Props{Input: input, Result: s.result}

	var renderErr error
	if s.ctrl.State() == mapview.Unmounted {
		renderErr = s.ctrl.Mount(props)
	} else {
		_, renderErr = s.ctrl.Update(props)
	}
	if renderErr != nil {
		s.lastErr = renderErr.Error()
	}
}

func (s *Session) onHoverCount(count float64, ok bool) {
	if !ok {
		s.info = nil
		return
	}
	s.info = &count
}

// Hover reports a mouseover on one feature and returns the hover info
func (s *Session) Hover(ctx context.Context, role domain.Role, index int) (*float64, error) {
	var (
		info     *float64
		hoverErr error
	)
	if err := s.do(ctx, func() {
		hoverErr = s.ctrl.Hover(role, index)
		info = copyInfo(s.info)
	}); err != nil {
		return nil, err
	}
	return info, hoverErr
}

// Click fires the map's diagnostic click
func (s *Session) Click(ctx context.Context) error {
	var clickErr error
	if err := s.do(ctx, func() { clickErr = s.ctrl.Click() }); err != nil {
		return err
	}
	return clickErr
}

// Info returns the count of the most recently hovered result feature
func (s *Session) Info(ctx context.Context) (*float64, error) {
	var info *float64
	err := s.do(ctx, func() { info = copyInfo(s.info) })
	return info, err
}

// View renders the whole session
func (s *Session) View(ctx context.Context) (View, error) {
	var v View
	err := s.do(ctx, func() {
		v = View{
			Form:    s.form,
			Info:    copyInfo(s.info),
			Error:   s.lastErr,
			Issued:  s.issued.Load(),
			Applied: s.applied,
			Map:     s.ctrl.Snapshot(),
		}
	})
	return v, err
}

func copyInfo(info *float64) *float64 {
	if info == nil {
		return nil
	}
	v := *info
	return &v
}
