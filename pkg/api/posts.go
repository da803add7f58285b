package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/nihalkurra/student-collab-hub/pkg/model"
	"github.com/nihalkurra/student-collab-hub/pkg/services"
)

func (s *Server) listPosts(w http.ResponseWriter, r *http.Request) *HTTPError {
	page, limit := parsePage(r, 20)
	q := services.PostQuery{
		Page:     page,
		Limit:    limit,
		Type:     r.URL.Query().Get("type"),
		Category: r.URL.Query().Get("category"),
		Author:   r.URL.Query().Get("author"),
		Search:   r.URL.Query().Get("search"),
	}
	posts, total, err := s.posts.List(r.Context(), reqIDFrom(r.Context()), q, viewerPtr(r))
	if err != nil {
		return fromService(err)
	}
	return writeJSON(w, http.StatusOK, map[string]any{
		"posts":      posts,
		"pagination": newPagination(page, limit, total),
	})
}

func (s *Server) explorePosts(w http.ResponseWriter, r *http.Request) *HTTPError {
	posts, err := s.posts.Explore(r.Context(), reqIDFrom(r.Context()), viewerPtr(r))
	if err != nil {
		return fromService(err)
	}
	return writeJSON(w, http.StatusOK, map[string]any{"posts": posts})
}

func (s *Server) likedPosts(w http.ResponseWriter, r *http.Request) *HTTPError {
	viewer, _ := UserFrom(r.Context())
	page, limit := parsePage(r, 20)
	posts, total, err := s.posts.Liked(r.Context(), reqIDFrom(r.Context()), viewer, page, limit)
	if err != nil {
		return fromService(err)
	}
	return writeJSON(w, http.StatusOK, map[string]any{
		"posts":      posts,
		"pagination": newPagination(page, limit, total),
	})
}

func (s *Server) feedPosts(w http.ResponseWriter, r *http.Request) *HTTPError {
	viewer, _ := UserFrom(r.Context())
	page, limit := parsePage(r, 20)
	posts, total, err := s.feed.Read(r.Context(), reqIDFrom(r.Context()), viewer, page, limit)
	if err != nil {
		return fromService(err)
	}
	return writeJSON(w, http.StatusOK, map[string]any{
		"posts":      posts,
		"pagination": newPagination(page, limit, total),
	})
}

func (s *Server) getPost(w http.ResponseWriter, r *http.Request) *HTTPError {
	id, e := objectIDVar(r, "id")
	if e != nil {
		return e
	}
	post, err := s.posts.Get(r.Context(), reqIDFrom(r.Context()), id, viewerPtr(r))
	if err != nil {
		return fromService(err)
	}
	return writeJSON(w, http.StatusOK, map[string]any{"post": post})
}

// createPost accepts a multipart form; attachment files are streamed to the
// hosted image service before the document is written.
func (s *Server) createPost(w http.ResponseWriter, r *http.Request) *HTTPError {
	author, _ := UserFrom(r.Context())
	reqID := reqIDFrom(r.Context())

	if err := r.ParseMultipartForm(64 << 20); err != nil {
		return badRequest("expected a multipart form")
	}

	in := services.PostInput{
		Type:     model.PostType(r.FormValue("type")),
		Title:    r.FormValue("title"),
		Content:  r.FormValue("content"),
		Category: model.Category(r.FormValue("category")),
		Tags:     model.ParseTags(r.FormValue("tags")),
		IsPublic: true,
	}
	if v := r.FormValue("isPublic"); v != "" {
		isPublic, err := strconv.ParseBool(v)
		if err != nil {
			return badRequest("isPublic must be a boolean")
		}
		in.IsPublic = isPublic
	}
	if v := r.FormValue("job"); v != "" {
		if err := json.Unmarshal([]byte(v), &in.Job); err != nil {
			return badRequest("job must be a json object")
		}
	}
	if v := r.FormValue("note"); v != "" {
		if err := json.Unmarshal([]byte(v), &in.Note); err != nil {
			return badRequest("note must be a json object")
		}
	}

	if r.MultipartForm != nil {
		files := r.MultipartForm.File["attachments"]
		if len(files) > model.MaxAttachments {
			return badRequest("at most 5 attachments are allowed")
		}
		for _, header := range files {
			file, err := header.Open()
			if err != nil {
				return internal(err)
			}
			att, err := s.media.Upload(r.Context(), reqID, header.Filename, header.Header.Get("Content-Type"), file)
			file.Close()
			if err != nil {
				return internal(err)
			}
			in.Attachments = append(in.Attachments, att)
		}
	}

	post, err := s.posts.Create(r.Context(), reqID, author, in)
	if err != nil {
		return fromService(err)
	}
	return writeJSON(w, http.StatusCreated, map[string]any{"post": post})
}

func (s *Server) updatePost(w http.ResponseWriter, r *http.Request) *HTTPError {
	author, _ := UserFrom(r.Context())
	id, e := objectIDVar(r, "id")
	if e != nil {
		return e
	}
	var req struct {
		Title    *string            `json:"title"`
		Content  *string            `json:"content"`
		Category *model.Category    `json:"category"`
		Tags     []string           `json:"tags"`
		IsPublic *bool              `json:"isPublic"`
		Job      *model.JobDetails  `json:"job"`
		Note     *model.NoteDetails `json:"note"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return badRequest("invalid json body")
	}
	upd := services.PostUpdate{
		Title:    req.Title,
		Content:  req.Content,
		Category: req.Category,
		Tags:     req.Tags,
		IsPublic: req.IsPublic,
		Job:      req.Job,
		Note:     req.Note,
	}
	post, err := s.posts.Update(r.Context(), reqIDFrom(r.Context()), author, id, upd)
	if err != nil {
		return fromService(err)
	}
	return writeJSON(w, http.StatusOK, map[string]any{"post": post})
}

func (s *Server) deletePost(w http.ResponseWriter, r *http.Request) *HTTPError {
	author, _ := UserFrom(r.Context())
	id, e := objectIDVar(r, "id")
	if e != nil {
		return e
	}
	if err := s.posts.Delete(r.Context(), reqIDFrom(r.Context()), author, id); err != nil {
		return fromService(err)
	}
	return writeJSON(w, http.StatusOK, map[string]any{"message": "post deleted"})
}

func (s *Server) likePost(w http.ResponseWriter, r *http.Request) *HTTPError {
	viewer, _ := UserFrom(r.Context())
	id, e := objectIDVar(r, "id")
	if e != nil {
		return e
	}
	if err := s.posts.Like(r.Context(), reqIDFrom(r.Context()), viewer, id); err != nil {
		return fromService(err)
	}
	return writeJSON(w, http.StatusOK, map[string]any{"message": "liked"})
}

func (s *Server) unlikePost(w http.ResponseWriter, r *http.Request) *HTTPError {
	viewer, _ := UserFrom(r.Context())
	id, e := objectIDVar(r, "id")
	if e != nil {
		return e
	}
	if err := s.posts.Unlike(r.Context(), reqIDFrom(r.Context()), viewer, id); err != nil {
		return fromService(err)
	}
	return writeJSON(w, http.StatusOK, map[string]any{"message": "unliked"})
}

// listPostComments and createPostComment mirror the comments resource scoped
// to a post.
func (s *Server) listPostComments(w http.ResponseWriter, r *http.Request) *HTTPError {
	id, e := objectIDVar(r, "id")
	if e != nil {
		return e
	}
	page, limit := parsePage(r, 10)
	comments, total, err := s.comments.ListByPost(r.Context(), reqIDFrom(r.Context()), id, viewerPtr(r), page, limit)
	if err != nil {
		return fromService(err)
	}
	return writeJSON(w, http.StatusOK, map[string]any{
		"comments":   comments,
		"pagination": newPagination(page, limit, total),
	})
}

func (s *Server) createPostComment(w http.ResponseWriter, r *http.Request) *HTTPError {
	author, _ := UserFrom(r.Context())
	id, e := objectIDVar(r, "id")
	if e != nil {
		return e
	}
	var req struct {
		Content string  `json:"content"`
		Parent  *string `json:"parent"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return badRequest("invalid json body")
	}
	in := services.CommentInput{Post: id, Content: req.Content}
	if pe := parseParent(req.Parent, &in); pe != nil {
		return pe
	}
	comment, err := s.comments.Create(r.Context(), reqIDFrom(r.Context()), author, in)
	if err != nil {
		return fromService(err)
	}
	return writeJSON(w, http.StatusCreated, map[string]any{"comment": comment})
}

func (s *Server) deletePostComment(w http.ResponseWriter, r *http.Request) *HTTPError {
	author, _ := UserFrom(r.Context())
	commentID, e := objectIDVar(r, "commentId")
	if e != nil {
		return e
	}
	if err := s.comments.Delete(r.Context(), reqIDFrom(r.Context()), author, commentID); err != nil {
		return fromService(err)
	}
	return writeJSON(w, http.StatusOK, map[string]any{"message": "comment deleted"})
}
