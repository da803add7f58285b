package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/nihalkurra/student-collab-hub/pkg/model"
	"github.com/nihalkurra/student-collab-hub/pkg/services"
	"github.com/nihalkurra/student-collab-hub/pkg/utils"
)

// Handler is a route handler returning a structured error instead of writing
// it ad hoc.
type Handler func(w http.ResponseWriter, r *http.Request) *HTTPError

type Server struct {
	logger   *slog.Logger
	tracer   trace.Tracer
	ids      *utils.Generator
	router   *mux.Router
	auth     services.AuthService
	users    services.UserService
	posts    services.PostService
	comments services.CommentService
	feed     services.FeedService
	media    services.MediaService
}

func NewServer(
	logger *slog.Logger,
	auth services.AuthService,
	users services.UserService,
	posts services.PostService,
	comments services.CommentService,
	feed services.FeedService,
	media services.MediaService,
) *Server {
	s := &Server{
		logger:   logger,
		tracer:   otel.Tracer("api"),
		ids:      utils.NewGenerator(),
		auth:     auth,
		users:    users,
		posts:    posts,
		comments: comments,
		feed:     feed,
		media:    media,
	}
	s.routes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	r := mux.NewRouter()
	api := r.PathPrefix("/api").Subrouter()

	// auth
	api.Handle("/auth/register", s.handle("auth.register", s.register)).Methods(http.MethodPost)
	api.Handle("/auth/login", s.handle("auth.login", s.login)).Methods(http.MethodPost)
	api.Handle("/auth/me", s.requireAuth(s.handle("auth.me", s.me))).Methods(http.MethodGet)
	api.Handle("/auth/me", s.requireAuth(s.handle("auth.update_profile", s.updateProfile))).Methods(http.MethodPut)

	// users; fixed paths are registered ahead of the {id} routes
	api.Handle("/users", s.optionalAuth(s.handle("users.list", s.listUsers))).Methods(http.MethodGet)
	api.Handle("/users/explore", s.requireAuth(s.handle("users.explore", s.exploreUsers))).Methods(http.MethodGet)
	api.Handle("/users/{id}", s.optionalAuth(s.handle("users.get", s.getUser))).Methods(http.MethodGet)
	api.Handle("/users/{id}/follow", s.requireAuth(s.handle("users.follow", s.followUser))).Methods(http.MethodPost)
	api.Handle("/users/{id}/follow", s.requireAuth(s.handle("users.unfollow", s.unfollowUser))).Methods(http.MethodDelete)
	api.Handle("/users/{id}/followers", s.handle("users.followers", s.listFollowers)).Methods(http.MethodGet)
	api.Handle("/users/{id}/following", s.handle("users.following", s.listFollowing)).Methods(http.MethodGet)
	api.Handle("/users/{id}/posts", s.optionalAuth(s.handle("users.posts", s.listUserPosts))).Methods(http.MethodGet)

	// posts
	api.Handle("/posts", s.optionalAuth(s.handle("posts.list", s.listPosts))).Methods(http.MethodGet)
	api.Handle("/posts", s.requireAuth(s.handle("posts.create", s.createPost))).Methods(http.MethodPost)
	api.Handle("/posts/explore", s.optionalAuth(s.handle("posts.explore", s.explorePosts))).Methods(http.MethodGet)
	api.Handle("/posts/liked", s.requireAuth(s.handle("posts.liked", s.likedPosts))).Methods(http.MethodGet)
	api.Handle("/posts/feed", s.requireAuth(s.handle("posts.feed", s.feedPosts))).Methods(http.MethodGet)
	api.Handle("/posts/{id}", s.optionalAuth(s.handle("posts.get", s.getPost))).Methods(http.MethodGet)
	api.Handle("/posts/{id}", s.requireAuth(s.handle("posts.update", s.updatePost))).Methods(http.MethodPut)
	api.Handle("/posts/{id}", s.requireAuth(s.handle("posts.delete", s.deletePost))).Methods(http.MethodDelete)
	api.Handle("/posts/{id}/like", s.requireAuth(s.handle("posts.like", s.likePost))).Methods(http.MethodPost)
	api.Handle("/posts/{id}/like", s.requireAuth(s.handle("posts.unlike", s.unlikePost))).Methods(http.MethodDelete)
	api.Handle("/posts/{id}/comments", s.optionalAuth(s.handle("posts.comments", s.listPostComments))).Methods(http.MethodGet)
	api.Handle("/posts/{id}/comments", s.requireAuth(s.handle("posts.comment", s.createPostComment))).Methods(http.MethodPost)
	api.Handle("/posts/{id}/comments/{commentId}", s.requireAuth(s.handle("posts.delete_comment", s.deletePostComment))).Methods(http.MethodDelete)

	// comments
	api.Handle("/comments", s.optionalAuth(s.handle("comments.list", s.listComments))).Methods(http.MethodGet)
	api.Handle("/comments", s.requireAuth(s.handle("comments.create", s.createComment))).Methods(http.MethodPost)
	api.Handle("/comments/{id}", s.requireAuth(s.handle("comments.update", s.updateComment))).Methods(http.MethodPut)
	api.Handle("/comments/{id}", s.requireAuth(s.handle("comments.delete", s.deleteComment))).Methods(http.MethodDelete)
	api.Handle("/comments/{id}/like", s.requireAuth(s.handle("comments.like", s.likeComment))).Methods(http.MethodPost)
	api.Handle("/comments/{id}/like", s.requireAuth(s.handle("comments.unlike", s.unlikeComment))).Methods(http.MethodDelete)
	api.Handle("/comments/{id}/replies", s.optionalAuth(s.handle("comments.replies", s.listReplies))).Methods(http.MethodGet)

	s.router = r
}

// handle wraps a Handler with a request id, a tracing span and uniform error
// encoding.
func (s *Server) handle(label string, h Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, span := s.tracer.Start(r.Context(), label)
		defer span.End()

		reqID, err := s.ids.NextID()
		if err != nil {
			s.logger.Error("error generating request id", "msg", err.Error())
		}
		r = r.WithContext(withReqID(ctx, reqID))

		w.Header().Set("Content-Type", "application/json")
		if e := h(w, r); e != nil {
			if e.IError != nil {
				s.logger.Error("request failed", "req_id", reqID, "route", label, "msg", e.IError.Error())
			}
			writeError(w, e)
		}
	})
}

func writeError(w http.ResponseWriter, e *HTTPError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(e.Status)
	if err := json.NewEncoder(w).Encode(e); err != nil {
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte(http.StatusText(http.StatusInternalServerError)))
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) *HTTPError {
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		return internal(err)
	}
	return nil
}

// objectIDVar parses a path variable as an ObjectID.
func objectIDVar(r *http.Request, name string) (primitive.ObjectID, *HTTPError) {
	id, err := primitive.ObjectIDFromHex(mux.Vars(r)[name])
	if err != nil {
		return primitive.NilObjectID, badRequest("invalid id")
	}
	return id, nil
}

// viewerPtr adapts the optional identity to the services' nullable viewer.
func viewerPtr(r *http.Request) *model.User {
	if u, ok := UserFrom(r.Context()); ok {
		return &u
	}
	return nil
}
