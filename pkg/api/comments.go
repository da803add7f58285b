package api

import (
	"encoding/json"
	"net/http"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/nihalkurra/student-collab-hub/pkg/services"
)

func parseParent(parent *string, in *services.CommentInput) *HTTPError {
	if parent == nil || *parent == "" {
		return nil
	}
	id, err := primitive.ObjectIDFromHex(*parent)
	if err != nil {
		return badRequest("parent must be a valid comment id")
	}
	in.Parent = &id
	return nil
}

// listComments serves GET /api/comments?post=<id>.
func (s *Server) listComments(w http.ResponseWriter, r *http.Request) *HTTPError {
	postID, err := primitive.ObjectIDFromHex(r.URL.Query().Get("post"))
	if err != nil {
		return badRequest("post query parameter must be a valid id")
	}
	page, limit := parsePage(r, 10)
	comments, total, serr := s.comments.ListByPost(r.Context(), reqIDFrom(r.Context()), postID, viewerPtr(r), page, limit)
	if serr != nil {
		return fromService(serr)
	}
	return writeJSON(w, http.StatusOK, map[string]any{
		"comments":   comments,
		"pagination": newPagination(page, limit, total),
	})
}

func (s *Server) createComment(w http.ResponseWriter, r *http.Request) *HTTPError {
	author, _ := UserFrom(r.Context())
	var req struct {
		Post    string  `json:"post"`
		Content string  `json:"content"`
		Parent  *string `json:"parent"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return badRequest("invalid json body")
	}
	postID, err := primitive.ObjectIDFromHex(req.Post)
	if err != nil {
		return badRequest("post must be a valid id")
	}
	in := services.CommentInput{Post: postID, Content: req.Content}
	if pe := parseParent(req.Parent, &in); pe != nil {
		return pe
	}
	comment, serr := s.comments.Create(r.Context(), reqIDFrom(r.Context()), author, in)
	if serr != nil {
		return fromService(serr)
	}
	return writeJSON(w, http.StatusCreated, map[string]any{"comment": comment})
}

func (s *Server) updateComment(w http.ResponseWriter, r *http.Request) *HTTPError {
	author, _ := UserFrom(r.Context())
	id, e := objectIDVar(r, "id")
	if e != nil {
		return e
	}
	var req struct {
		Content string `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return badRequest("invalid json body")
	}
	comment, err := s.comments.Update(r.Context(), reqIDFrom(r.Context()), author, id, req.Content)
	if err != nil {
		return fromService(err)
	}
	return writeJSON(w, http.StatusOK, map[string]any{"comment": comment})
}

func (s *Server) deleteComment(w http.ResponseWriter, r *http.Request) *HTTPError {
	author, _ := UserFrom(r.Context())
	id, e := objectIDVar(r, "id")
	if e != nil {
		return e
	}
	if err := s.comments.Delete(r.Context(), reqIDFrom(r.Context()), author, id); err != nil {
		return fromService(err)
	}
	return writeJSON(w, http.StatusOK, map[string]any{"message": "comment deleted"})
}

func (s *Server) likeComment(w http.ResponseWriter, r *http.Request) *HTTPError {
	viewer, _ := UserFrom(r.Context())
	id, e := objectIDVar(r, "id")
	if e != nil {
		return e
	}
	if err := s.comments.Like(r.Context(), reqIDFrom(r.Context()), viewer, id); err != nil {
		return fromService(err)
	}
	return writeJSON(w, http.StatusOK, map[string]any{"message": "liked"})
}

func (s *Server) unlikeComment(w http.ResponseWriter, r *http.Request) *HTTPError {
	viewer, _ := UserFrom(r.Context())
	id, e := objectIDVar(r, "id")
	if e != nil {
		return e
	}
	if err := s.comments.Unlike(r.Context(), reqIDFrom(r.Context()), viewer, id); err != nil {
		return fromService(err)
	}
	return writeJSON(w, http.StatusOK, map[string]any{"message": "unliked"})
}

func (s *Server) listReplies(w http.ResponseWriter, r *http.Request) *HTTPError {
	id, e := objectIDVar(r, "id")
	if e != nil {
		return e
	}
	page, limit := parsePage(r, 10)
	replies, total, err := s.comments.Replies(r.Context(), reqIDFrom(r.Context()), id, viewerPtr(r), page, limit)
	if err != nil {
		return fromService(err)
	}
	return writeJSON(w, http.StatusOK, map[string]any{
		"comments":   replies,
		"pagination": newPagination(page, limit, total),
	})
}
