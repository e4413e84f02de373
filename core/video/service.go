// Package video manages lecture video views: a virtual player per view holding a moving
// watermark, and the stream token fetched for it.
package video

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/classroom/core"
	"github.com/trezcool/classroom/core/dom"
	"github.com/trezcool/classroom/core/overlay"
	"github.com/trezcool/classroom/core/schedule"
)

const (
	defaultWidth  = 1280
	defaultHeight = 720
)

var ErrNotFound = errors.New("view not found")

type Config struct {
	Overlay         overlay.Config
	WatermarkWidth  float64
	WatermarkHeight float64
	TokenTimeout    time.Duration
}

func DefaultConfig() Config {
	return Config{
		Overlay:         overlay.DefaultConfig(),
		WatermarkWidth:  100,
		WatermarkHeight: 40,
		TokenTimeout:    10 * time.Second,
	}
}

func ConfigFrom(conf *core.Config) Config {
	return Config{
		Overlay:         overlay.ConfigFrom(conf.Overlay),
		WatermarkWidth:  conf.Overlay.Width,
		WatermarkHeight: conf.Overlay.Height,
		TokenTimeout:    conf.Video.StreamTokenTimeout,
	}
}

// StartView is the request to open a video view.
type StartView struct {
	LectureID string  `json:"lecture_id" validate:"required"`
	UserID    string  `json:"user_id" validate:"required"`
	SessionID string  `json:"session_id" validate:"required"`
	Label     string  `json:"label" validate:"omitempty,max=64"`
	Width     float64 `json:"width" validate:"omitempty,gt=0"`
	Height    float64 `json:"height" validate:"omitempty,gt=0"`
}

type Watermark struct {
	Text          string           `json:"text"`
	Position      overlay.Position `json:"position"`
	Placed        bool             `json:"placed"`
	Attached      bool             `json:"attached"`
	Placements    int              `json:"placements"`
	Reattachments int              `json:"reattachments"`
}

type View struct {
	ID        string       `json:"id"`
	LectureID string       `json:"lecture_id"`
	UserID    string       `json:"user_id"`
	SessionID string       `json:"session_id"`
	StartedAt time.Time    `json:"started_at"`
	Width     float64      `json:"width"`
	Height    float64      `json:"height"`
	Watermark Watermark    `json:"watermark"`
	Stream    *StreamToken `json:"stream,omitempty"`
}

type view struct {
	id        string
	lectureID string
	userID    string
	sessionID string
	label     string
	startedAt time.Time

	doc        *dom.Document
	player     *dom.Node
	container  *dom.Node
	watermark  *dom.Node
	positioner *overlay.Positioner

	mu     sync.Mutex
	ended  bool
	stream *StreamToken
}

func (v *view) snapshot() View {
	w, h := v.doc.Window().Size()
	pos, placed := v.positioner.Position()

	v.mu.Lock()
	stream := v.stream
	v.mu.Unlock()

	return View{
		ID:        v.id,
		LectureID: v.lectureID,
		UserID:    v.userID,
		SessionID: v.sessionID,
		StartedAt: v.startedAt,
		Width:     w,
		Height:    h,
		Watermark: Watermark{
			Text:          v.watermark.Text(),
			Position:      pos,
			Placed:        placed,
			Attached:      v.watermark.IsConnected(),
			Placements:    v.positioner.Placements(),
			Reattachments: v.positioner.Reattachments(),
		},
		Stream: stream,
	}
}

type Option func(*Service)

func WithScheduler(sched *schedule.Scheduler) Option {
	return func(s *Service) { s.sched = sched }
}

func WithRandom(rnd overlay.Random) Option {
	return func(s *Service) { s.rnd = rnd }
}

// Service owns the open video views. Safe for concurrent use.
type Service struct {
	cfg      Config
	tokens   TokenSource
	validate *validator.Validate
	logger   core.Logger
	sched    *schedule.Scheduler
	rnd      overlay.Random

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu    sync.RWMutex
	views map[string]*view
}

func NewService(cfg Config, tokens TokenSource, validate *validator.Validate, logger core.Logger, opts ...Option) (*Service, error) {
	if err := cfg.Overlay.Validate(); err != nil {
		return nil, err
	}
	if cfg.WatermarkWidth <= 0 || cfg.WatermarkHeight <= 0 {
		return nil, core.NewConfigurationError("watermark", "size must be positive")
	}
	if cfg.TokenTimeout <= 0 {
		return nil, core.NewConfigurationError("tokenTimeout", "must be positive")
	}

	svc := &Service{
		cfg:      cfg,
		tokens:   tokens,
		validate: validate,
		logger:   logger,
		views:    make(map[string]*view),
	}
	for _, opt := range opts {
		opt(svc)
	}
	if svc.sched == nil {
		svc.sched = schedule.New(schedule.WithLogger(logger)).Named("video")
	}
	svc.ctx, svc.cancel = context.WithCancel(context.Background())
	return svc, nil
}

// StartView opens a view and mounts its watermark. The stream token is fetched in the background.
func (svc *Service) StartView(ctx context.Context, req StartView) (View, error) {
	if err := svc.validate.StructCtx(ctx, req); err != nil {
		return View{}, err
	}
	if req.Width == 0 {
		req.Width = defaultWidth
	}
	if req.Height == 0 {
		req.Height = defaultHeight
	}
	if req.Label == "" {
		req.Label = req.UserID
	}

	v := &view{
		id:        uuid.New().String(),
		lectureID: req.LectureID,
		userID:    req.UserID,
		sessionID: req.SessionID,
		label:     req.Label,
		startedAt: svc.sched.Clock().Now().UTC(),
		doc:       dom.NewDocument(req.Width, req.Height),
	}
	if err := svc.buildPlayer(v, req.Width, req.Height); err != nil {
		return View{}, errors.Wrap(err, "building player")
	}

	opts := []overlay.Option{
		overlay.WithConfig(svc.cfg.Overlay),
		overlay.WithScheduler(svc.sched),
		overlay.WithWindow(v.doc.Window()),
		overlay.WithFallback(v.doc.Body()),
		overlay.WithLogger(svc.logger),
	}
	if svc.rnd != nil {
		opts = append(opts, overlay.WithRandom(svc.rnd))
	}
	positioner, err := overlay.New(opts...)
	if err != nil {
		return View{}, err
	}
	if err := positioner.Mount(v.watermark, v.container); err != nil {
		return View{}, errors.Wrap(err, "mounting watermark")
	}
	v.positioner = positioner

	svc.mu.Lock()
	svc.views[v.id] = v
	svc.mu.Unlock()

	svc.wg.Add(1)
	go svc.fetchToken(v)

	return v.snapshot(), nil
}

func (svc *Service) buildPlayer(v *view, width, height float64) error {
	v.player = v.doc.CreateElement("div")
	v.player.SetAttribute("class", "player")
	v.player.SetSize(width, height)

	v.container = v.doc.CreateElement("div")
	v.container.SetAttribute("class", "video-container")
	v.container.SetSize(width, height)

	v.watermark = v.doc.CreateElement("div")
	v.watermark.SetAttribute("class", "watermark")
	v.watermark.SetText(v.label)
	v.watermark.SetSize(svc.cfg.WatermarkWidth, svc.cfg.WatermarkHeight)

	if err := v.doc.Body().AppendChild(v.player); err != nil {
		return err
	}
	return v.player.AppendChild(v.container)
}

// fetchToken runs once per view. A failed fetch leaves the watermark text unchanged.
func (svc *Service) fetchToken(v *view) {
	defer svc.wg.Done()

	ctx, cancel := context.WithTimeout(svc.ctx, svc.cfg.TokenTimeout)
	defer cancel()

	tok, err := svc.tokens.Token(ctx, StreamRequest{LectureID: v.lectureID, UserID: v.userID, ViewID: v.id})
	if err != nil {
		svc.logger.Warn(fmt.Sprintf("video.fetchToken(%s): %v", v.id, err), err)
		return
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	if v.ended {
		return
	}
	v.stream = &tok
	v.watermark.SetText(watermarkText(v.label, tok))
}

func watermarkText(label string, tok StreamToken) string {
	serial := tok.Serial
	if len(serial) > 8 {
		serial = serial[:8]
	}
	if serial == "" {
		return label
	}
	return label + " #" + serial
}

func (svc *Service) get(id string) (*view, error) {
	svc.mu.RLock()
	defer svc.mu.RUnlock()
	v, ok := svc.views[id]
	if !ok {
		return nil, ErrNotFound
	}
	return v, nil
}

func (svc *Service) View(id string) (View, error) {
	v, err := svc.get(id)
	if err != nil {
		return View{}, err
	}
	return v.snapshot(), nil
}

// Resize changes the player viewport; the watermark is placed again right away.
func (svc *Service) Resize(id string, width, height float64) (View, error) {
	if width <= 0 || height <= 0 {
		return View{}, core.NewValidationError(
			errors.New("invalid viewport"),
			core.FieldError{Field: "width", Error: "width and height must be positive"},
		)
	}
	v, err := svc.get(id)
	if err != nil {
		return View{}, err
	}
	v.player.SetSize(width, height)
	v.container.SetSize(width, height)
	v.doc.Window().Resize(width, height)
	return v.snapshot(), nil
}

// ViewsBySession returns the open views of a session.
func (svc *Service) ViewsBySession(sessionID string) []View {
	svc.mu.RLock()
	var vs []*view
	for _, v := range svc.views {
		if v.sessionID == sessionID {
			vs = append(vs, v)
		}
	}
	svc.mu.RUnlock()

	views := make([]View, 0, len(vs))
	for _, v := range vs {
		views = append(views, v.snapshot())
	}
	return views
}

func (svc *Service) EndView(id string) error {
	svc.mu.Lock()
	v, ok := svc.views[id]
	delete(svc.views, id)
	svc.mu.Unlock()
	if !ok {
		return ErrNotFound
	}
	svc.end(v)
	return nil
}

func (svc *Service) end(v *view) {
	v.mu.Lock()
	v.ended = true
	v.mu.Unlock()
	v.positioner.Unmount()
}

// CloseSession ends every view opened within the session.
func (svc *Service) CloseSession(sessionID string) {
	svc.mu.Lock()
	var ended []*view
	for id, v := range svc.views {
		if v.sessionID == sessionID {
			ended = append(ended, v)
			delete(svc.views, id)
		}
	}
	svc.mu.Unlock()

	for _, v := range ended {
		svc.end(v)
	}
	if len(ended) > 0 {
		svc.logger.Debug(fmt.Sprintf("video: closed %d view(s) of session %s", len(ended), sessionID))
	}
}

func (svc *Service) Len() int {
	svc.mu.RLock()
	defer svc.mu.RUnlock()
	return len(svc.views)
}

// Close ends every view and waits for pending token fetches.
func (svc *Service) Close() {
	svc.cancel()

	svc.mu.Lock()
	views := svc.views
	svc.views = make(map[string]*view)
	svc.mu.Unlock()

	for _, v := range views {
		svc.end(v)
	}
	svc.wg.Wait()
}
