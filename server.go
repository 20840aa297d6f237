package ideabox

import (
	"context"
	"net/http"
	"time"

	"github.com/jhchabran/ideabox/identity"
	"github.com/julienschmidt/httprouter"
	"github.com/rs/zerolog"
)

const (
	shutdownTimeout = 10 * time.Second
	hookTimeout     = 5 * time.Second
)

// ProposalHook is called after a proposal has been created.
type ProposalHook func(ctx context.Context, p *Proposal) error

// CommentHook is called after a comment has been created.
type CommentHook func(ctx context.Context, c *Comment) error

type ServerConfig struct {
	Addr             string
	ProposalsPerPage int
}

type Server struct {
	Logger          zerolog.Logger
	config          *ServerConfig
	store           Store
	polls           PollStore
	tally           *Tally
	identities      identity.Provider
	router          *httprouter.Router
	handler         http.Handler
	done            chan struct{}
	idleConnsClosed chan struct{}
	proposalHooks   []ProposalHook
	commentHooks    []CommentHook
}

// NewServer returns a server serving proposals and comments from store, and the
// big issue poll from polls. Both can be the same value.
func NewServer(config *ServerConfig, logger zerolog.Logger, store Store, polls PollStore, identities identity.Provider) *Server {
	s := &Server{
		Logger:          logger,
		config:          config,
		store:           store,
		polls:           polls,
		tally:           NewTally(store, polls, logger.With().Str("component", "tally").Logger()),
		identities:      identities,
		router:          httprouter.New(),
		done:            make(chan struct{}),
		idleConnsClosed: make(chan struct{}),
	}

	s.handler = s.router
	httpMiddlewares := []httpMiddleware{s.logMiddleware(), s.corsMiddleware()}
	for i := len(httpMiddlewares) - 1; i >= 0; i-- {
		s.handler = httpMiddlewares[i](s.handler)
	}

	return s
}

// AddProposalHook registers a hook run after each proposal creation. A failing
// hook is logged and does not fail the request.
func (s *Server) AddProposalHook(h ProposalHook) {
	s.proposalHooks = append(s.proposalHooks, h)
}

// AddCommentHook registers a hook run after each comment creation.
func (s *Server) AddCommentHook(h CommentHook) {
	s.commentHooks = append(s.commentHooks, h)
}

func (s *Server) Prepare() error {
	// databases
	err := s.store.Connect()
	if err != nil {
		return err
	}
	err = s.polls.Connect()
	if err != nil {
		return err
	}

	s.router.NotFound = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.respondError(w, r, NotFound(http.StatusText(http.StatusNotFound)))
	})
	s.router.MethodNotAllowed = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.respondError(w, r, MethodNotAllowed(r.Method, r.URL.Path))
	})
	s.router.GlobalOPTIONS = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// CORS headers are already set by corsMiddleware
		w.WriteHeader(http.StatusNoContent)
	})

	// routes
	withMiddlewares(func(m middleware) {
		s.router.GET("/proposals", m(s.HandleListProposals()))
		s.router.POST("/proposals", m(s.HandleSubmitProposal()))
		s.router.GET("/proposals/:id", m(s.HandleShowProposal()))
		s.router.POST("/proposals/:id/votes", m(s.HandleVoteProposal()))
		s.router.GET("/comments", m(s.HandleListComments()))
		s.router.POST("/comments", m(s.HandleSubmitComment()))
		s.router.GET("/votes", m(s.HandleShowVotes()))
		s.router.POST("/votes", m(s.HandleSubmitVote()))
	}, s.limitBodyMiddleware())

	withMiddlewares(func(m middleware) {
		s.router.GET("/identity", m(s.HandleIdentity()))
	}, s.identityMiddleware())

	s.router.GET("/healthz", s.HandleHealth())

	return nil
}

// Start listens on the configured address and blocks until Stop is called or
// the listener fails.
func (s *Server) Start() error {
	httpServer := http.Server{Addr: s.config.Addr, Handler: s}

	errs := make(chan error, 1)
	go func() {
		if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
			errs <- err
		}
	}()

	s.Logger.Info().Str("addr", s.config.Addr).Msg("Listening")

	select {
	case err := <-errs:
		close(s.idleConnsClosed)
		return err
	case <-s.done:
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	err := httpServer.Shutdown(ctx)
	close(s.idleConnsClosed)

	return err
}

func (s *Server) Stop() {
	close(s.done)
	<-s.idleConnsClosed
}

func (s *Server) ServeHTTP(res http.ResponseWriter, req *http.Request) {
	s.handler.ServeHTTP(res, req)
}

func (s *Server) runProposalHooks(ctx context.Context, p *Proposal) {
	for _, h := range s.proposalHooks {
		hctx, cancel := context.WithTimeout(ctx, hookTimeout)
		err := h(hctx, p)
		cancel()
		if err != nil {
			s.Logger.Warn().Err(err).Int64("proposal_id", p.ID).Msg("proposal hook failed")
		}
	}
}

func (s *Server) runCommentHooks(ctx context.Context, c *Comment) {
	for _, h := range s.commentHooks {
		hctx, cancel := context.WithTimeout(ctx, hookTimeout)
		err := h(hctx, c)
		cancel()
		if err != nil {
			s.Logger.Warn().Err(err).Int64("comment_id", c.ID).Msg("comment hook failed")
		}
	}
}
