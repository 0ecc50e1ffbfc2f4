package fixture

import (
	"cmp"
	"log/slog"
	"math"
	"mime"
	"net/http"
	"path"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jonboulle/clockwork"

	"github.com/abhisek/hangeul/internal/assessment"
	"github.com/abhisek/hangeul/internal/logging"
)

// DefaultDisplayName names submissions without an X-Display-Name header.
const DefaultDisplayName = "you"

// Options configures a Server.
type Options struct {
	Content *Content

	// BasePath prefixes every route, e.g. "/api".
	BasePath string

	// Token, when set, is required as a Bearer token.
	Token string

	// MinClientVersion is advertised in X-Min-Client-Version when set.
	MinClientVersion string

	// Latency delays every response. Useful to watch the loading states.
	Latency time.Duration

	Clock  clockwork.Clock
	Logger *slog.Logger
}

// Server is the in-memory backend. Results and leaderboard scores live only
// as long as the process.
type Server struct {
	content  *Content
	basePath string
	token    string
	minVer   string
	latency  time.Duration
	clock    clockwork.Clock
	logger   *slog.Logger

	mu      sync.Mutex
	results []assessment.HistoryEntry
	scores  []score
	idem    map[string]assessment.Result
}

type score struct {
	name         string
	assessmentID string
	typ          assessment.Type
	value        int
}

// apiResponse mirrors the envelope every endpoint returns.
type apiResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// NewServer creates a Server over opts.Content.
func NewServer(opts Options) *Server {
	clock := opts.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	s := &Server{
		content:  opts.Content,
		basePath: "/" + strings.Trim(opts.BasePath, "/"),
		token:    opts.Token,
		minVer:   opts.MinClientVersion,
		latency:  opts.Latency,
		clock:    clock,
		logger:   logger.With("component", "fixture"),
		idem:     make(map[string]assessment.Result),
	}
	for _, seed := range opts.Content.Leaderboard {
		typ := assessment.Type("")
		if a, ok := opts.Content.assessment(seed.AssessmentID); ok {
			typ = a.Type
		}
		s.scores = append(s.scores, score{
			name:         seed.DisplayName,
			assessmentID: seed.AssessmentID,
			typ:          typ,
			value:        seed.Score,
		})
	}
	return s
}

// Handler returns the gin engine serving the API.
func (s *Server) Handler() http.Handler {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger(), s.headers())

	g := r.Group(s.basePath)
	g.GET("/media/*name", s.media)

	authed := g.Group("", s.auth())
	authed.GET("/categories", s.categories)
	authed.GET("/assessments", s.assessments)
	authed.GET("/assessments/:id/questions", s.questions)
	authed.POST("/assessments/:id/submit", s.submit)
	authed.GET("/results", s.history)
	authed.GET("/leaderboard", s.leaderboard)

	r.NoRoute(func(c *gin.Context) {
		fail(c, http.StatusNotFound, "not found")
	})
	return r
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"latency_ms", time.Since(start).Milliseconds())
	}
}

func (s *Server) headers() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.minVer != "" {
			c.Header("X-Min-Client-Version", s.minVer)
		}
		if s.latency > 0 {
			select {
			case <-s.clock.After(s.latency):
			case <-c.Request.Context().Done():
				c.Abort()
				return
			}
		}
		c.Next()
	}
}

func (s *Server) auth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.token == "" {
			c.Next()
			return
		}
		header := c.GetHeader("Authorization")
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || parts[1] != s.token {
			fail(c, http.StatusUnauthorized, "invalid or missing bearer token")
			c.Abort()
			return
		}
		c.Next()
	}
}

func ok(c *gin.Context, message string, data any) {
	c.JSON(http.StatusOK, apiResponse{Success: true, Message: message, Data: data})
}

func fail(c *gin.Context, status int, message string) {
	c.JSON(status, apiResponse{Success: false, Message: message})
}

func (s *Server) categories(c *gin.Context) {
	typ := assessment.Type(c.Query("type"))
	out := []assessment.Category{}
	for _, cat := range s.content.Categories {
		if typ == "" || cat.Type == typ {
			out = append(out, cat)
		}
	}
	ok(c, "categories", out)
}

func (s *Server) assessments(c *gin.Context) {
	categoryID := c.Query("category_id")
	typ := assessment.Type(c.Query("type"))
	out := []assessment.Assessment{}
	for _, a := range s.content.Assessments {
		if categoryID != "" && a.CategoryID != categoryID {
			continue
		}
		if typ != "" && a.Type != typ {
			continue
		}
		out = append(out, a.Assessment)
	}
	ok(c, "assessments", out)
}

func (s *Server) questions(c *gin.Context) {
	a, found := s.content.assessment(c.Param("id"))
	if !found {
		fail(c, http.StatusNotFound, "assessment not found")
		return
	}
	out := make([]assessment.Question, len(a.Questions))
	for i, q := range a.Questions {
		out[i] = s.withMediaURLs(c, q)
	}
	ok(c, "questions", out)
}

// withMediaURLs makes server-relative media paths absolute.
func (s *Server) withMediaURLs(c *gin.Context, q assessment.Question) assessment.Question {
	abs := func(u string) string {
		if !strings.HasPrefix(u, "/media/") {
			return u
		}
		scheme := "http"
		if c.Request.TLS != nil {
			scheme = "https"
		}
		return scheme + "://" + c.Request.Host + path.Join(s.basePath, u)
	}

	q.MediaRefs = slices.Clone(q.MediaRefs)
	for i := range q.MediaRefs {
		q.MediaRefs[i].URL = abs(q.MediaRefs[i].URL)
	}
	q.Options = slices.Clone(q.Options)
	for i := range q.Options {
		if q.Options[i].Kind == assessment.KindImage || q.Options[i].Kind == assessment.KindAudio {
			q.Options[i].Content = abs(q.Options[i].Content)
		}
	}
	if q.PromptBox != nil {
		pb := *q.PromptBox
		pb.MediaURL = abs(pb.MediaURL)
		q.PromptBox = &pb
	}
	return q
}

type submitBody struct {
	Answers []struct {
		QuestionID string `json:"question_id" binding:"required"`
		OptionID   string `json:"option_id" binding:"required"`
	} `json:"answers" binding:"dive"`
	TimeTakenSeconds int  `json:"time_taken_seconds" binding:"min=0"`
	AutoSubmitted    bool `json:"auto_submitted"`
}

func (s *Server) submit(c *gin.Context) {
	a, found := s.content.assessment(c.Param("id"))
	if !found {
		fail(c, http.StatusNotFound, "assessment not found")
		return
	}

	var body submitBody
	if err := c.ShouldBindJSON(&body); err != nil {
		fail(c, http.StatusBadRequest, "invalid submission: "+err.Error())
		return
	}

	key := c.GetHeader("Idempotency-Key")
	s.mu.Lock()
	defer s.mu.Unlock()

	if key != "" {
		if res, dup := s.idem[key]; dup {
			s.logger.Info("duplicate submission", "assessment_id", a.ID, "idempotency_key", key)
			ok(c, "already submitted", res)
			return
		}
	}

	byID := make(map[string]assessment.Question, len(a.Questions))
	for _, q := range a.Questions {
		byID[q.ID] = q
	}
	correct := 0
	answered := make(map[string]bool, len(body.Answers))
	for _, ans := range body.Answers {
		q, known := byID[ans.QuestionID]
		if !known {
			fail(c, http.StatusUnprocessableEntity, "unknown question "+ans.QuestionID)
			return
		}
		if answered[ans.QuestionID] {
			fail(c, http.StatusUnprocessableEntity, "question answered twice: "+ans.QuestionID)
			return
		}
		answered[ans.QuestionID] = true
		if ans.OptionID == q.CorrectOptionID() {
			correct++
		}
	}

	res := Score(correct, len(a.Questions), a.PassingScore)
	if key != "" {
		s.idem[key] = res
	}

	name := c.GetHeader("X-Display-Name")
	if name == "" {
		name = DefaultDisplayName
	}
	s.results = append(s.results, assessment.HistoryEntry{
		AssessmentID:     a.ID,
		Title:            a.Title,
		Score:            res.Score,
		Passed:           res.Passed,
		CorrectAnswers:   res.CorrectAnswers,
		TotalQuestions:   res.TotalQuestions,
		TimeTakenSeconds: body.TimeTakenSeconds,
		CompletedAt:      s.clock.Now().UTC(),
	})
	s.scores = append(s.scores, score{name: name, assessmentID: a.ID, typ: a.Type, value: res.Score})

	s.logger.Info("submission scored",
		"assessment_id", a.ID,
		"score", res.Score,
		"passed", res.Passed,
		"auto", body.AutoSubmitted)
	ok(c, "submitted", res)
}

// Score computes the percentage score of correct out of total.
func Score(correct, total, passing int) assessment.Result {
	pct := 0
	if total > 0 {
		pct = int(math.Round(100 * float64(correct) / float64(total)))
	}
	return assessment.Result{
		Score:          pct,
		Passed:         pct >= passing,
		CorrectAnswers: correct,
		TotalQuestions: total,
	}
}

func (s *Server) history(c *gin.Context) {
	id := c.Query("assessment_id")
	s.mu.Lock()
	out := []assessment.HistoryEntry{}
	for _, r := range s.results {
		if id == "" || r.AssessmentID == id {
			out = append(out, r)
		}
	}
	s.mu.Unlock()

	slices.SortStableFunc(out, func(a, b assessment.HistoryEntry) int {
		return b.CompletedAt.Compare(a.CompletedAt)
	})
	ok(c, "results", out)
}

func (s *Server) leaderboard(c *gin.Context) {
	typ := assessment.Type(c.Query("type"))
	id := c.Query("assessment_id")

	type agg struct {
		best     int
		attempts int
	}
	byName := make(map[string]*agg)
	s.mu.Lock()
	for _, sc := range s.scores {
		if typ != "" && sc.typ != typ {
			continue
		}
		if id != "" && sc.assessmentID != id {
			continue
		}
		a := byName[sc.name]
		if a == nil {
			a = &agg{best: sc.value}
			byName[sc.name] = a
		}
		a.best = max(a.best, sc.value)
		a.attempts++
	}
	s.mu.Unlock()

	out := make([]assessment.LeaderboardEntry, 0, len(byName))
	for name, a := range byName {
		out = append(out, assessment.LeaderboardEntry{DisplayName: name, Score: a.best, Attempts: a.attempts})
	}
	slices.SortFunc(out, func(a, b assessment.LeaderboardEntry) int {
		if d := cmp.Compare(b.Score, a.Score); d != 0 {
			return d
		}
		return cmp.Compare(a.DisplayName, b.DisplayName)
	})
	for i := range out {
		out[i].Rank = i + 1
	}
	ok(c, "leaderboard", out)
}

// media serves a small placeholder body for any asset name.
func (s *Server) media(c *gin.Context) {
	name := strings.TrimPrefix(c.Param("name"), "/")
	if name == "" {
		fail(c, http.StatusNotFound, "media not found")
		return
	}
	ctype := mime.TypeByExtension(path.Ext(name))
	if ctype == "" {
		ctype = "application/octet-stream"
	}
	c.Data(http.StatusOK, ctype, []byte("hangeul fixture media: "+name+"\n"))
}
