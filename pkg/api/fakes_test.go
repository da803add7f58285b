package api

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/nihalkurra/student-collab-hub/pkg/model"
	"github.com/nihalkurra/student-collab-hub/pkg/services"
)

// memState is a process-local stand-in for the three collections, shared by
// the fake services below. The fakes keep the same observable semantics as
// the mongo-backed implementations.
type memState struct {
	mu        sync.Mutex
	users     map[primitive.ObjectID]*model.User
	userOrder []primitive.ObjectID
	posts     map[primitive.ObjectID]*model.Post
	postOrder []primitive.ObjectID
	comments  map[primitive.ObjectID]*model.Comment
	tokens    map[string]primitive.ObjectID
}

func newMemState() *memState {
	return &memState{
		users:    map[primitive.ObjectID]*model.User{},
		posts:    map[primitive.ObjectID]*model.Post{},
		comments: map[primitive.ObjectID]*model.Comment{},
		tokens:   map[string]primitive.ObjectID{},
	}
}

func (st *memState) addUser(username string) (model.User, string) {
	st.mu.Lock()
	defer st.mu.Unlock()
	u := &model.User{
		ID:        primitive.NewObjectID(),
		Username:  username,
		Email:     username + "@uni.edu",
		FullName:  username,
		Followers: []primitive.ObjectID{},
		Following: []primitive.ObjectID{},
		CreatedAt: time.Now().UTC(),
	}
	st.users[u.ID] = u
	st.userOrder = append(st.userOrder, u.ID)
	token := username + "-token"
	st.tokens[token] = u.ID
	return *u, token
}

func (st *memState) addPost(author primitive.ObjectID, title string, public bool) model.Post {
	st.mu.Lock()
	defer st.mu.Unlock()
	p := &model.Post{
		ID:        primitive.NewObjectID(),
		Author:    author,
		Type:      model.PostTypeNote,
		Title:     title,
		Content:   "content",
		Category:  model.CategoryAcademic,
		Tags:      []string{},
		Likes:     []primitive.ObjectID{},
		Comments:  []primitive.ObjectID{},
		IsPublic:  public,
		CreatedAt: time.Now().UTC(),
	}
	st.posts[p.ID] = p
	st.postOrder = append(st.postOrder, p.ID)
	return *p
}

func addToSet(list []primitive.ObjectID, id primitive.ObjectID) []primitive.ObjectID {
	for _, v := range list {
		if v == id {
			return list
		}
	}
	return append(list, id)
}

func pull(list []primitive.ObjectID, remove ...primitive.ObjectID) []primitive.ObjectID {
	out := list[:0]
	for _, v := range list {
		keep := true
		for _, r := range remove {
			if v == r {
				keep = false
				break
			}
		}
		if keep {
			out = append(out, v)
		}
	}
	return out
}

func pageSlice[T any](items []T, page, limit int) []T {
	start := (page - 1) * limit
	if start >= len(items) {
		return nil
	}
	end := start + limit
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}

// ---- auth ----

type fakeAuth struct{ st *memState }

func (f fakeAuth) Register(ctx context.Context, reqID int64, req services.RegisterRequest) (model.User, string, error) {
	if errs := model.ValidateRegistration(req.Username, req.Email, req.Password, req.FullName); len(errs) > 0 {
		return model.User{}, "", &services.ValidationError{Fields: errs}
	}
	f.st.mu.Lock()
	for _, u := range f.st.users {
		if u.Username == req.Username {
			f.st.mu.Unlock()
			return model.User{}, "", services.ErrUsernameTaken
		}
	}
	f.st.mu.Unlock()
	u, tok := f.st.addUser(req.Username)
	return u, tok, nil
}

func (f fakeAuth) Login(ctx context.Context, reqID int64, username, password string) (model.User, string, error) {
	f.st.mu.Lock()
	defer f.st.mu.Unlock()
	for _, u := range f.st.users {
		if u.Username == username {
			return *u, username + "-token", nil
		}
	}
	return model.User{}, "", services.ErrInvalidCredentials
}

func (f fakeAuth) VerifyToken(ctx context.Context, token string) (model.User, error) {
	f.st.mu.Lock()
	defer f.st.mu.Unlock()
	id, ok := f.st.tokens[token]
	if !ok {
		return model.User{}, services.ErrInvalidToken
	}
	return *f.st.users[id], nil
}

// ---- users ----

type fakeUsers struct{ st *memState }

func (f fakeUsers) List(ctx context.Context, reqID int64, q services.UserQuery) ([]model.UserSummary, int64, error) {
	f.st.mu.Lock()
	defer f.st.mu.Unlock()
	total := int64(len(f.st.userOrder))
	var out []model.UserSummary
	for _, id := range pageSlice(f.st.userOrder, q.Page, q.Limit) {
		out = append(out, f.st.users[id].Summary())
	}
	return out, total, nil
}

func (f fakeUsers) Explore(ctx context.Context, reqID int64, viewer model.User, page, limit int) ([]services.ExploreUser, int64, error) {
	f.st.mu.Lock()
	defer f.st.mu.Unlock()
	var ids []primitive.ObjectID
	for _, id := range f.st.userOrder {
		if id != viewer.ID {
			ids = append(ids, id)
		}
	}
	var out []services.ExploreUser
	for _, id := range pageSlice(ids, page, limit) {
		out = append(out, services.ExploreUser{
			UserSummary: f.st.users[id].Summary(),
			IsFollowing: containsObjectID(viewer.Following, id),
		})
	}
	return out, int64(len(ids)), nil
}

func (f fakeUsers) Get(ctx context.Context, reqID int64, id primitive.ObjectID, viewer *model.User) (services.Profile, error) {
	f.st.mu.Lock()
	defer f.st.mu.Unlock()
	u, ok := f.st.users[id]
	if !ok {
		return services.Profile{}, services.ErrNotFound
	}
	p := services.Profile{User: *u, Followers: []model.UserSummary{}, Following: []model.UserSummary{}}
	for _, fid := range u.Followers {
		p.Followers = append(p.Followers, f.st.users[fid].Summary())
	}
	for _, fid := range u.Following {
		p.Following = append(p.Following, f.st.users[fid].Summary())
	}
	if viewer != nil {
		p.IsFollowing = containsObjectID(u.Followers, viewer.ID)
	}
	return p, nil
}

func (f fakeUsers) Update(ctx context.Context, reqID int64, self model.User, upd services.ProfileUpdate) (model.User, error) {
	f.st.mu.Lock()
	defer f.st.mu.Unlock()
	u := f.st.users[self.ID]
	if upd.Bio != "" {
		u.Bio = upd.Bio
	}
	if upd.Avatar != "" {
		u.Avatar = upd.Avatar
	}
	return *u, nil
}

func (f fakeUsers) Follow(ctx context.Context, reqID int64, viewer model.User, targetID primitive.ObjectID) error {
	if viewer.ID == targetID {
		return services.ErrSelfFollow
	}
	f.st.mu.Lock()
	defer f.st.mu.Unlock()
	target, ok := f.st.users[targetID]
	if !ok {
		return services.ErrNotFound
	}
	me := f.st.users[viewer.ID]
	me.Following = addToSet(me.Following, targetID)
	target.Followers = addToSet(target.Followers, viewer.ID)
	return nil
}

func (f fakeUsers) Unfollow(ctx context.Context, reqID int64, viewer model.User, targetID primitive.ObjectID) error {
	if viewer.ID == targetID {
		return services.ErrSelfFollow
	}
	f.st.mu.Lock()
	defer f.st.mu.Unlock()
	me := f.st.users[viewer.ID]
	if !containsObjectID(me.Following, targetID) {
		return services.ErrNotFollowing
	}
	target, ok := f.st.users[targetID]
	if !ok {
		return services.ErrNotFound
	}
	me.Following = pull(me.Following, targetID)
	target.Followers = pull(target.Followers, viewer.ID)
	return nil
}

func (f fakeUsers) Followers(ctx context.Context, reqID int64, id primitive.ObjectID, page, limit int) ([]model.UserSummary, int64, error) {
	return f.relation(id, true, page, limit)
}

func (f fakeUsers) Following(ctx context.Context, reqID int64, id primitive.ObjectID, page, limit int) ([]model.UserSummary, int64, error) {
	return f.relation(id, false, page, limit)
}

func (f fakeUsers) relation(id primitive.ObjectID, followers bool, page, limit int) ([]model.UserSummary, int64, error) {
	f.st.mu.Lock()
	defer f.st.mu.Unlock()
	u, ok := f.st.users[id]
	if !ok {
		return nil, 0, services.ErrNotFound
	}
	ids := u.Following
	if followers {
		ids = u.Followers
	}
	var out []model.UserSummary
	for _, fid := range pageSlice(ids, page, limit) {
		out = append(out, f.st.users[fid].Summary())
	}
	return out, int64(len(ids)), nil
}

// ---- posts ----

type fakePosts struct{ st *memState }

func (f fakePosts) visible(p *model.Post, viewer *model.User) bool {
	return p.IsPublic || (viewer != nil && viewer.ID == p.Author)
}

func (f fakePosts) view(p *model.Post, viewer *model.User) services.PostView {
	v := services.PostView{
		Post:         *p,
		LikeCount:    len(p.Likes),
		CommentCount: len(p.Comments),
	}
	if author, ok := f.st.users[p.Author]; ok {
		v.Author = author.Summary()
	}
	if viewer != nil {
		v.IsLiked = containsObjectID(p.Likes, viewer.ID)
	}
	return v
}

func (f fakePosts) List(ctx context.Context, reqID int64, q services.PostQuery, viewer *model.User) ([]services.PostView, int64, error) {
	f.st.mu.Lock()
	defer f.st.mu.Unlock()
	var visible []primitive.ObjectID
	for _, id := range f.st.postOrder {
		if f.visible(f.st.posts[id], viewer) {
			visible = append(visible, id)
		}
	}
	var out []services.PostView
	for _, id := range pageSlice(visible, q.Page, q.Limit) {
		out = append(out, f.view(f.st.posts[id], viewer))
	}
	return out, int64(len(visible)), nil
}

func (f fakePosts) Explore(ctx context.Context, reqID int64, viewer *model.User) ([]services.PostView, error) {
	views, _, err := f.List(ctx, reqID, services.PostQuery{Page: 1, Limit: 20}, viewer)
	return views, err
}

func (f fakePosts) Liked(ctx context.Context, reqID int64, viewer model.User, page, limit int) ([]services.PostView, int64, error) {
	f.st.mu.Lock()
	defer f.st.mu.Unlock()
	var liked []primitive.ObjectID
	for _, id := range f.st.postOrder {
		if containsObjectID(f.st.posts[id].Likes, viewer.ID) {
			liked = append(liked, id)
		}
	}
	var out []services.PostView
	for _, id := range pageSlice(liked, page, limit) {
		out = append(out, f.view(f.st.posts[id], &viewer))
	}
	return out, int64(len(liked)), nil
}

func (f fakePosts) Get(ctx context.Context, reqID int64, id primitive.ObjectID, viewer *model.User) (services.PostView, error) {
	f.st.mu.Lock()
	defer f.st.mu.Unlock()
	p, ok := f.st.posts[id]
	if !ok || !f.visible(p, viewer) {
		return services.PostView{}, services.ErrNotFound
	}
	p.Views++
	return f.view(p, viewer), nil
}

func (f fakePosts) Create(ctx context.Context, reqID int64, author model.User, in services.PostInput) (services.PostView, error) {
	p := model.Post{
		Type:     in.Type,
		Title:    in.Title,
		Content:  in.Content,
		Category: in.Category,
		Tags:     in.Tags,
		IsPublic: in.IsPublic,
	}
	if errs := model.ValidatePost(p); len(errs) > 0 {
		return services.PostView{}, &services.ValidationError{Fields: errs}
	}
	stored := f.st.addPost(author.ID, in.Title, in.IsPublic)
	f.st.mu.Lock()
	defer f.st.mu.Unlock()
	sp := f.st.posts[stored.ID]
	sp.Type = in.Type
	sp.Content = in.Content
	sp.Category = in.Category
	sp.Tags = in.Tags
	sp.Attachments = in.Attachments
	return f.view(sp, &author), nil
}

func (f fakePosts) Update(ctx context.Context, reqID int64, author model.User, id primitive.ObjectID, upd services.PostUpdate) (services.PostView, error) {
	f.st.mu.Lock()
	defer f.st.mu.Unlock()
	p, ok := f.st.posts[id]
	if !ok {
		return services.PostView{}, services.ErrNotFound
	}
	if p.Author != author.ID {
		return services.PostView{}, services.ErrForbidden
	}
	if upd.Title != nil {
		p.Title = *upd.Title
	}
	if upd.Content != nil {
		p.Content = *upd.Content
	}
	return f.view(p, &author), nil
}

func (f fakePosts) Delete(ctx context.Context, reqID int64, author model.User, id primitive.ObjectID) error {
	f.st.mu.Lock()
	defer f.st.mu.Unlock()
	p, ok := f.st.posts[id]
	if !ok {
		return services.ErrNotFound
	}
	if p.Author != author.ID {
		return services.ErrForbidden
	}
	for cid, c := range f.st.comments {
		if c.Post == id {
			delete(f.st.comments, cid)
		}
	}
	delete(f.st.posts, id)
	f.st.postOrder = pull(f.st.postOrder, id)
	return nil
}

func (f fakePosts) Like(ctx context.Context, reqID int64, viewer model.User, id primitive.ObjectID) error {
	f.st.mu.Lock()
	defer f.st.mu.Unlock()
	p, ok := f.st.posts[id]
	if !ok {
		return services.ErrNotFound
	}
	p.Likes = addToSet(p.Likes, viewer.ID)
	return nil
}

func (f fakePosts) Unlike(ctx context.Context, reqID int64, viewer model.User, id primitive.ObjectID) error {
	f.st.mu.Lock()
	defer f.st.mu.Unlock()
	p, ok := f.st.posts[id]
	if !ok {
		return services.ErrNotFound
	}
	p.Likes = pull(p.Likes, viewer.ID)
	return nil
}

func (f fakePosts) ByUser(ctx context.Context, reqID int64, userID primitive.ObjectID, viewer *model.User, page, limit int) ([]services.PostView, int64, error) {
	f.st.mu.Lock()
	defer f.st.mu.Unlock()
	if _, ok := f.st.users[userID]; !ok {
		return nil, 0, services.ErrNotFound
	}
	var ids []primitive.ObjectID
	for _, id := range f.st.postOrder {
		p := f.st.posts[id]
		if p.Author == userID && f.visible(p, viewer) {
			ids = append(ids, id)
		}
	}
	var out []services.PostView
	for _, id := range pageSlice(ids, page, limit) {
		out = append(out, f.view(f.st.posts[id], viewer))
	}
	return out, int64(len(ids)), nil
}

// ---- comments ----

type fakeComments struct{ st *memState }

func (f fakeComments) view(c *model.Comment, viewer *model.User) services.CommentView {
	v := services.CommentView{
		Comment:   *c,
		Replies:   []services.CommentView{},
		LikeCount: len(c.Likes),
	}
	if author, ok := f.st.users[c.Author]; ok {
		v.Author = author.Summary()
	}
	if viewer != nil {
		v.IsLiked = containsObjectID(c.Likes, viewer.ID)
	}
	return v
}

func (f fakeComments) ListByPost(ctx context.Context, reqID int64, postID primitive.ObjectID, viewer *model.User, page, limit int) ([]services.CommentView, int64, error) {
	f.st.mu.Lock()
	defer f.st.mu.Unlock()
	p, ok := f.st.posts[postID]
	if !ok {
		return nil, 0, services.ErrNotFound
	}
	var top []*model.Comment
	for _, cid := range p.Comments {
		if c, ok := f.st.comments[cid]; ok && c.Parent == nil {
			top = append(top, c)
		}
	}
	var out []services.CommentView
	for _, c := range pageSlice(top, page, limit) {
		v := f.view(c, viewer)
		for _, rid := range c.Replies {
			if r, ok := f.st.comments[rid]; ok {
				v.Replies = append(v.Replies, f.view(r, viewer))
			}
		}
		out = append(out, v)
	}
	return out, int64(len(top)), nil
}

func (f fakeComments) Create(ctx context.Context, reqID int64, author model.User, in services.CommentInput) (services.CommentView, error) {
	if errs := model.ValidateComment(in.Content); len(errs) > 0 {
		return services.CommentView{}, &services.ValidationError{Fields: errs}
	}
	f.st.mu.Lock()
	defer f.st.mu.Unlock()
	p, ok := f.st.posts[in.Post]
	if !ok {
		return services.CommentView{}, services.ErrNotFound
	}
	if in.Parent != nil {
		parent, ok := f.st.comments[*in.Parent]
		if !ok {
			return services.CommentView{}, services.ErrNotFound
		}
		if parent.Post != in.Post {
			return services.CommentView{}, &services.ValidationError{Fields: []string{"parent comment belongs to a different post"}}
		}
	}
	c := &model.Comment{
		ID:        primitive.NewObjectID(),
		Author:    author.ID,
		Post:      in.Post,
		Parent:    in.Parent,
		Content:   in.Content,
		Replies:   []primitive.ObjectID{},
		Likes:     []primitive.ObjectID{},
		CreatedAt: time.Now().UTC(),
	}
	f.st.comments[c.ID] = c
	p.Comments = append(p.Comments, c.ID)
	if in.Parent != nil {
		parent := f.st.comments[*in.Parent]
		parent.Replies = append(parent.Replies, c.ID)
	}
	return f.view(c, &author), nil
}

func (f fakeComments) Update(ctx context.Context, reqID int64, author model.User, id primitive.ObjectID, content string) (services.CommentView, error) {
	f.st.mu.Lock()
	defer f.st.mu.Unlock()
	c, ok := f.st.comments[id]
	if !ok {
		return services.CommentView{}, services.ErrNotFound
	}
	if c.Author != author.ID {
		return services.CommentView{}, services.ErrForbidden
	}
	c.Content = content
	c.Edited = true
	return f.view(c, &author), nil
}

func (f fakeComments) Delete(ctx context.Context, reqID int64, author model.User, id primitive.ObjectID) error {
	f.st.mu.Lock()
	defer f.st.mu.Unlock()
	c, ok := f.st.comments[id]
	if !ok {
		return services.ErrNotFound
	}
	if c.Author != author.ID {
		return services.ErrForbidden
	}
	removed := append([]primitive.ObjectID{id}, c.Replies...)
	for _, rid := range removed {
		delete(f.st.comments, rid)
	}
	if p, ok := f.st.posts[c.Post]; ok {
		p.Comments = pull(p.Comments, removed...)
	}
	if c.Parent != nil {
		if parent, ok := f.st.comments[*c.Parent]; ok {
			parent.Replies = pull(parent.Replies, id)
		}
	}
	return nil
}

func (f fakeComments) Like(ctx context.Context, reqID int64, viewer model.User, id primitive.ObjectID) error {
	f.st.mu.Lock()
	defer f.st.mu.Unlock()
	c, ok := f.st.comments[id]
	if !ok {
		return services.ErrNotFound
	}
	c.Likes = addToSet(c.Likes, viewer.ID)
	return nil
}

func (f fakeComments) Unlike(ctx context.Context, reqID int64, viewer model.User, id primitive.ObjectID) error {
	f.st.mu.Lock()
	defer f.st.mu.Unlock()
	c, ok := f.st.comments[id]
	if !ok {
		return services.ErrNotFound
	}
	c.Likes = pull(c.Likes, viewer.ID)
	return nil
}

func (f fakeComments) Replies(ctx context.Context, reqID int64, parentID primitive.ObjectID, viewer *model.User, page, limit int) ([]services.CommentView, int64, error) {
	f.st.mu.Lock()
	defer f.st.mu.Unlock()
	parent, ok := f.st.comments[parentID]
	if !ok {
		return nil, 0, services.ErrNotFound
	}
	var out []services.CommentView
	for _, rid := range pageSlice(parent.Replies, page, limit) {
		if r, ok := f.st.comments[rid]; ok {
			out = append(out, f.view(r, viewer))
		}
	}
	return out, int64(len(parent.Replies)), nil
}

// ---- feed & media ----

type fakeFeed struct{ st *memState }

func (f fakeFeed) Read(ctx context.Context, reqID int64, viewer model.User, page, limit int) ([]services.PostView, int64, error) {
	return []services.PostView{}, 0, nil
}

type fakeMedia struct{}

func (fakeMedia) Upload(ctx context.Context, reqID int64, filename, contentType string, r io.Reader) (model.Attachment, error) {
	io.Copy(io.Discard, r)
	return model.Attachment{
		Filename: filename,
		URL:      fmt.Sprintf("https://img.example/%s", filename),
		Type:     contentType,
	}, nil
}

func containsObjectID(list []primitive.ObjectID, id primitive.ObjectID) bool {
	for _, v := range list {
		if v == id {
			return true
		}
	}
	return false
}
