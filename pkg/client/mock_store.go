package client

import (
	"context"
	"sync"
	"time"

	"github.com/aeolun/forumchat/pkg/forum"
)

// MockCall records one MockThreadStore call
type MockCall struct {
	Op       string
	ThreadID int64
	Title    string
	Username string
	Content  string
}

// MockThreadStore is an in-memory test implementation of ThreadStore.
// Threads are kept newest first, posts oldest first, like the server.
type MockThreadStore struct {
	mu sync.Mutex

	threads []forum.Thread
	posts   map[int64][]forum.Post
	nextID  int64

	// Error injection, keyed by operation name ("create_thread", ...)
	errs map[string]error

	Calls []MockCall
}

// NewMockThreadStore creates an empty store
func NewMockThreadStore() *MockThreadStore {
	return &MockThreadStore{
		posts:  make(map[int64][]forum.Post),
		nextID: 1,
		errs:   make(map[string]error),
	}
}

// AddThread seeds a thread and returns it
func (s *MockThreadStore) AddThread(title string) forum.Thread {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addThreadLocked(title)
}

func (s *MockThreadStore) addThreadLocked(title string) forum.Thread {
	t := forum.Thread{ID: s.nextID, Title: title, CreatedAt: forum.Timestamp{Time: time.Now().UTC()}}
	s.nextID++
	s.threads = append([]forum.Thread{t}, s.threads...)
	return t
}

// AddPost seeds a post and returns it
func (s *MockThreadStore) AddPost(threadID int64, username, content string) forum.Post {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addPostLocked(threadID, username, content)
}

func (s *MockThreadStore) addPostLocked(threadID int64, username, content string) forum.Post {
	p := forum.Post{
		ID:        s.nextID,
		ThreadID:  threadID,
		Username:  username,
		Content:   content,
		CreatedAt: forum.Timestamp{Time: time.Now().UTC()},
	}
	s.nextID++
	s.posts[threadID] = append(s.posts[threadID], p)
	return p
}

// SetError makes op fail with err (nil clears it)
func (s *MockThreadStore) SetError(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.errs, op)
		return
	}
	s.errs[op] = err
}

// CallCount returns how many calls of op were made
func (s *MockThreadStore) CallCount(op string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.Calls {
		if c.Op == op {
			n++
		}
	}
	return n
}

func (s *MockThreadStore) begin(c MockCall) error {
	s.Calls = append(s.Calls, c)
	return s.errs[c.Op]
}

// ListThreads returns the seeded threads
func (s *MockThreadStore) ListThreads(ctx context.Context) ([]forum.Thread, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.begin(MockCall{Op: "list_threads"}); err != nil {
		return nil, err
	}
	return append([]forum.Thread(nil), s.threads...), nil
}

// CreateThread stores a new thread
func (s *MockThreadStore) CreateThread(ctx context.Context, title string) (forum.Thread, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.begin(MockCall{Op: "create_thread", Title: title}); err != nil {
		return forum.Thread{}, err
	}
	return s.addThreadLocked(title), nil
}

// ListPosts returns a thread's posts
func (s *MockThreadStore) ListPosts(ctx context.Context, threadID int64) ([]forum.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.begin(MockCall{Op: "list_posts", ThreadID: threadID}); err != nil {
		return nil, err
	}
	return append([]forum.Post(nil), s.posts[threadID]...), nil
}

// CreatePost stores a new post
func (s *MockThreadStore) CreatePost(ctx context.Context, threadID int64, username, content string) (forum.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.begin(MockCall{Op: "create_post", ThreadID: threadID, Username: username, Content: content}); err != nil {
		return forum.Post{}, err
	}
	return s.addPostLocked(threadID, username, content), nil
}

// DeleteThread removes a thread
func (s *MockThreadStore) DeleteThread(ctx context.Context, threadID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.begin(MockCall{Op: "delete_thread", ThreadID: threadID}); err != nil {
		return err
	}
	for i, t := range s.threads {
		if t.ID == threadID {
			s.threads = append(s.threads[:i], s.threads[i+1:]...)
			delete(s.posts, threadID)
			return nil
		}
	}
	return &APIError{StatusCode: 404, Message: "thread not found"}
}

// WipeThreads removes everything
func (s *MockThreadStore) WipeThreads(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.begin(MockCall{Op: "wipe_threads"}); err != nil {
		return err
	}
	s.threads = nil
	s.posts = make(map[int64][]forum.Post)
	return nil
}
