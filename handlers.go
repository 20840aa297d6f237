package ideabox

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/jhchabran/ideabox/identity"
	"github.com/jhchabran/ideabox/ranking"
	"github.com/julienschmidt/httprouter"
)

// respondError writes the response matching err. Errors that are not ErrorResponders
// are logged and answered with a generic internal server error.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, context.Canceled) {
		// the client went away, there is nobody to answer to, the status only
		// shows up in the request log
		s.Logger.Debug().Str("path", r.URL.Path).Msg("request canceled")
		w.WriteHeader(statusClientClosedRequest)
		return
	}

	var unavailable *StoreUnavailableError
	if errors.As(err, &unavailable) {
		s.Logger.Error().Err(unavailable.Unwrap()).Str("path", r.URL.Path).Msg(unavailable.msg)
	} else {
		s.Logger.Debug().Err(err).Str("path", r.URL.Path).Msg("request rejected")
	}

	var responder ErrorResponder
	if errors.As(err, &responder) && responder.RespondError(w, r) {
		return
	}

	s.Logger.Error().Err(err).Msg("unhandled error")
	writeMessage(w, http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
}

// HandleListProposals handles requests listing proposals, optionally filtered by a search
// term, sorted and paginated.
func (s *Server) HandleListProposals() httprouter.Handle {
	return func(res http.ResponseWriter, req *http.Request, _ httprouter.Params) {
		query := req.URL.Query()

		order, err := ranking.ParseOrder(query.Get("sort"))
		if err != nil {
			s.respondError(res, req, BadRequest("sort must be one of newest, oldest, top, downvoted or hot"))
			return
		}

		var page int
		if raw := query.Get("page"); raw != "" {
			page, err = strconv.Atoi(raw)
			if err != nil || page < 0 {
				s.respondError(res, req, BadRequest("page must be a positive number"))
				return
			}
		}

		proposals, err := s.store.ListProposals(req.Context(), ProposalQuery{
			Search:  strings.TrimSpace(query.Get("q")),
			Order:   order,
			Page:    page,
			PerPage: s.config.ProposalsPerPage,
		})
		if err != nil {
			s.respondError(res, req, StoreUnavailable("Failed to fetch proposals", storeError("list proposals", err)))
			return
		}

		writeJSON(res, http.StatusOK, proposals)
	}
}

// HandleSubmitProposal handles requests creating a proposal.
func (s *Server) HandleSubmitProposal() httprouter.Handle {
	type payload struct {
		Text string `json:"text"`
	}

	return func(res http.ResponseWriter, req *http.Request, _ httprouter.Params) {
		var body payload
		if err := decodeJSON(req, &body); err != nil {
			s.respondError(res, req, BadRequest("Invalid payload"))
			return
		}

		text, err := NormalizeProposalText(body.Text)
		if err != nil {
			s.respondError(res, req, BadRequest(err.Error()))
			return
		}

		proposal := NewProposal(text)
		err = s.store.InsertProposal(req.Context(), proposal)
		if err != nil {
			s.respondError(res, req, StoreUnavailable("Failed to create proposal", storeError("insert proposal", err)))
			return
		}

		s.runProposalHooks(req.Context(), proposal)

		writeJSON(res, http.StatusCreated, proposal)
	}
}

// HandleShowProposal handles requests for a single proposal.
func (s *Server) HandleShowProposal() httprouter.Handle {
	return func(res http.ResponseWriter, req *http.Request, params httprouter.Params) {
		id, ok := parsePositiveID(params.ByName("id"))
		if !ok {
			s.respondError(res, req, BadRequest("Invalid proposal id"))
			return
		}

		proposal, err := s.store.FindProposal(req.Context(), id)
		if errors.Is(err, ErrNotFound) {
			s.respondError(res, req, NotFound("Proposal not found"))
			return
		}
		if err != nil {
			s.respondError(res, req, StoreUnavailable("Failed to fetch proposal", storeError("find proposal", err)))
			return
		}

		writeJSON(res, http.StatusOK, proposal)
	}
}

// HandleVoteProposal handles requests to upvote or downvote a proposal. It answers with the
// proposal as it is after the vote.
func (s *Server) HandleVoteProposal() httprouter.Handle {
	type payload struct {
		VoteType string `json:"voteType"`
	}

	return func(res http.ResponseWriter, req *http.Request, params httprouter.Params) {
		id, ok := parsePositiveID(params.ByName("id"))
		if !ok {
			s.respondError(res, req, BadRequest("Invalid proposal id"))
			return
		}

		var body payload
		err := decodeJSON(req, &body)
		var vt VoteType
		if err == nil {
			vt, err = ParseVoteType(body.VoteType)
		}
		if err != nil {
			s.respondError(res, req, BadRequest(`voteType must be "up" or "down"`))
			return
		}

		proposal, err := s.tally.ApplyProposalVote(req.Context(), id, vt)
		if errors.Is(err, ErrNotFound) {
			s.respondError(res, req, NotFound("Failed to register vote"))
			return
		}
		if err != nil {
			s.respondError(res, req, StoreUnavailable("Failed to register vote", err))
			return
		}

		writeJSON(res, http.StatusOK, proposal)
	}
}

// HandleListComments handles requests listing the comments of a proposal, newest first.
func (s *Server) HandleListComments() httprouter.Handle {
	return func(res http.ResponseWriter, req *http.Request, _ httprouter.Params) {
		raw := req.URL.Query().Get("proposalId")
		if raw == "" {
			s.respondError(res, req, BadRequest("proposalId query parameter is required."))
			return
		}

		proposalID, ok := parsePositiveID(raw)
		if !ok {
			s.respondError(res, req, BadRequest("proposalId must be a positive number."))
			return
		}

		comments, err := s.store.ListComments(req.Context(), proposalID)
		if err != nil {
			s.respondError(res, req, StoreUnavailable("Failed to fetch comments", storeError("list comments", err)))
			return
		}

		for _, c := range comments {
			c.render()
		}

		writeJSON(res, http.StatusOK, comments)
	}
}

// HandleSubmitComment handles requests creating a comment on a proposal. The proposal id
// may be sent as a number or as a numeric string.
func (s *Server) HandleSubmitComment() httprouter.Handle {
	type payload struct {
		ProposalID json.Number `json:"proposalId"`
		Text       string      `json:"text"`
		UserName   interface{} `json:"userName"`
	}

	return func(res http.ResponseWriter, req *http.Request, _ httprouter.Params) {
		var body payload
		if err := decodeJSON(req, &body); err != nil {
			s.respondError(res, req, BadRequest("Invalid payload"))
			return
		}

		proposalID, ok := parsePositiveID(body.ProposalID.String())
		if !ok {
			s.respondError(res, req, BadRequest("proposalId must be a positive number."))
			return
		}

		if strings.TrimSpace(body.Text) == "" {
			s.respondError(res, req, BadRequest("text is required."))
			return
		}

		// a userName that is not a string is ignored
		userName, _ := body.UserName.(string)
		comment := NewComment(proposalID, body.Text, userName)
		err := s.store.InsertComment(req.Context(), comment)
		if errors.Is(err, ErrNotFound) {
			s.respondError(res, req, NotFound("Proposal not found"))
			return
		}
		if err != nil {
			s.respondError(res, req, StoreUnavailable("Failed to create comment", storeError("insert comment", err)))
			return
		}

		comment.render()
		s.runCommentHooks(req.Context(), comment)

		writeJSON(res, http.StatusCreated, comment)
	}
}

type votesResponse struct {
	Counts *Counts `json:"counts"`
	Choice Choice  `json:"choice"`
}

// HandleShowVotes handles requests for the big issue counters, along with the choice of
// the identifier given in the userId query parameter. A missing or malformed identifier
// is answered with a null choice.
func (s *Server) HandleShowVotes() httprouter.Handle {
	return func(res http.ResponseWriter, req *http.Request, _ httprouter.Params) {
		userID, _ := identity.Normalize(req.URL.Query().Get("userId"))

		counts, err := s.tally.Counts(req.Context())
		if err != nil {
			s.respondError(res, req, StoreUnavailable("Failed to fetch votes", err))
			return
		}

		choice, err := s.tally.Choice(req.Context(), userID)
		if err != nil {
			s.respondError(res, req, StoreUnavailable("Failed to fetch votes", err))
			return
		}

		writeJSON(res, http.StatusOK, votesResponse{Counts: counts, Choice: choice})
	}
}

// HandleSubmitVote handles requests casting or switching the big issue vote of an identifier.
func (s *Server) HandleSubmitVote() httprouter.Handle {
	type payload struct {
		UserID string `json:"userId"`
		Choice string `json:"choice"`
	}

	return func(res http.ResponseWriter, req *http.Request, _ httprouter.Params) {
		var body payload
		if err := decodeJSON(req, &body); err != nil {
			s.respondError(res, req, BadRequest("Invalid payload"))
			return
		}

		userID, ok := identity.Normalize(body.UserID)
		choice, err := ParseChoice(body.Choice)
		if !ok || err != nil {
			s.respondError(res, req, BadRequest("Invalid payload"))
			return
		}

		counts, err := s.tally.SubmitVote(req.Context(), userID, choice)
		if err != nil {
			s.respondError(res, req, StoreUnavailable("Failed to submit vote", err))
			return
		}

		writeJSON(res, http.StatusOK, votesResponse{Counts: counts, Choice: choice})
	}
}

// HandleIdentity handles requests for the identifier of the current browser, issuing
// one on the first visit.
func (s *Server) HandleIdentity() httprouter.Handle {
	return func(res http.ResponseWriter, req *http.Request, _ httprouter.Params) {
		writeJSON(res, http.StatusOK, map[string]string{"userId": ctxUserID(req.Context())})
	}
}

// HandleHealth reports whether the store can be reached.
func (s *Server) HandleHealth() httprouter.Handle {
	return func(res http.ResponseWriter, req *http.Request, _ httprouter.Params) {
		if err := s.store.Ping(req.Context()); err != nil {
			s.Logger.Warn().Err(err).Msg("health check failed")
			writeMessage(res, http.StatusServiceUnavailable, "Store unavailable")
			return
		}

		writeJSON(res, http.StatusOK, map[string]string{"status": "ok"})
	}
}
