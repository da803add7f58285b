package api

import (
	"net/http"

	"github.com/nihalkurra/student-collab-hub/pkg/services"
)

func (s *Server) listUsers(w http.ResponseWriter, r *http.Request) *HTTPError {
	page, limit := parsePage(r, 10)
	q := services.UserQuery{
		Page:       page,
		Limit:      limit,
		Username:   r.URL.Query().Get("username"),
		FullName:   r.URL.Query().Get("fullName"),
		University: r.URL.Query().Get("university"),
		Major:      r.URL.Query().Get("major"),
	}
	users, total, err := s.users.List(r.Context(), reqIDFrom(r.Context()), q)
	if err != nil {
		return fromService(err)
	}
	return writeJSON(w, http.StatusOK, map[string]any{
		"users":      users,
		"pagination": newPagination(page, limit, total),
	})
}

func (s *Server) exploreUsers(w http.ResponseWriter, r *http.Request) *HTTPError {
	viewer, _ := UserFrom(r.Context())
	page, limit := parsePage(r, 10)
	users, total, err := s.users.Explore(r.Context(), reqIDFrom(r.Context()), viewer, page, limit)
	if err != nil {
		return fromService(err)
	}
	return writeJSON(w, http.StatusOK, map[string]any{
		"users":      users,
		"pagination": newPagination(page, limit, total),
	})
}

func (s *Server) getUser(w http.ResponseWriter, r *http.Request) *HTTPError {
	id, e := objectIDVar(r, "id")
	if e != nil {
		return e
	}
	profile, err := s.users.Get(r.Context(), reqIDFrom(r.Context()), id, viewerPtr(r))
	if err != nil {
		return fromService(err)
	}
	return writeJSON(w, http.StatusOK, profile)
}

func (s *Server) followUser(w http.ResponseWriter, r *http.Request) *HTTPError {
	viewer, _ := UserFrom(r.Context())
	id, e := objectIDVar(r, "id")
	if e != nil {
		return e
	}
	if err := s.users.Follow(r.Context(), reqIDFrom(r.Context()), viewer, id); err != nil {
		return fromService(err)
	}
	return writeJSON(w, http.StatusOK, map[string]any{"message": "followed"})
}

func (s *Server) unfollowUser(w http.ResponseWriter, r *http.Request) *HTTPError {
	viewer, _ := UserFrom(r.Context())
	id, e := objectIDVar(r, "id")
	if e != nil {
		return e
	}
	if err := s.users.Unfollow(r.Context(), reqIDFrom(r.Context()), viewer, id); err != nil {
		return fromService(err)
	}
	return writeJSON(w, http.StatusOK, map[string]any{"message": "unfollowed"})
}

func (s *Server) listFollowers(w http.ResponseWriter, r *http.Request) *HTTPError {
	return s.listRelation(w, r, "followers")
}

func (s *Server) listFollowing(w http.ResponseWriter, r *http.Request) *HTTPError {
	return s.listRelation(w, r, "following")
}

func (s *Server) listRelation(w http.ResponseWriter, r *http.Request, field string) *HTTPError {
	id, e := objectIDVar(r, "id")
	if e != nil {
		return e
	}
	page, limit := parsePage(r, 20)
	reqID := reqIDFrom(r.Context())

	list := s.users.Following
	if field == "followers" {
		list = s.users.Followers
	}
	summaries, total, err := list(r.Context(), reqID, id, page, limit)
	if err != nil {
		return fromService(err)
	}
	return writeJSON(w, http.StatusOK, map[string]any{
		"users":      summaries,
		"pagination": newPagination(page, limit, total),
	})
}

func (s *Server) listUserPosts(w http.ResponseWriter, r *http.Request) *HTTPError {
	id, e := objectIDVar(r, "id")
	if e != nil {
		return e
	}
	page, limit := parsePage(r, 20)
	posts, total, err := s.posts.ByUser(r.Context(), reqIDFrom(r.Context()), id, viewerPtr(r), page, limit)
	if err != nil {
		return fromService(err)
	}
	return writeJSON(w, http.StatusOK, map[string]any{
		"posts":      posts,
		"pagination": newPagination(page, limit, total),
	})
}
