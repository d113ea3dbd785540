package middleware

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// WindowStore は固定ウィンドウのカウンターを保持する。
// Incrはキーのカウンターを原子的に1増やし、増加後の値と
// 現在のウィンドウが終わるまでの残り時間を返す。
type WindowStore interface {
	Incr(ctx context.Context, key string, window time.Duration) (count int64, resetIn time.Duration, err error)
}

// --- インメモリ実装 ---

type window struct {
	count   int64
	resetAt time.Time
}

// MemoryStore はプロセス内で完結するWindowStore。
// 単一インスタンス構成で使用する。
type MemoryStore struct {
	mu      sync.Mutex
	windows map[string]*window
	now     func() time.Time

	stopCh chan struct{}
}

// NewMemoryStore は新しいMemoryStoreを生成する。
// sweepIntervalが正の場合、終了したウィンドウをバックグラウンドで定期的に削除する。
func NewMemoryStore(sweepInterval time.Duration) *MemoryStore {
	s := &MemoryStore{
		windows: make(map[string]*window),
		now:     time.Now,
		stopCh:  make(chan struct{}),
	}
	if sweepInterval > 0 {
		go s.sweepLoop(sweepInterval)
	}
	return s
}

// Stop はバックグラウンドの掃除を停止する。
func (s *MemoryStore) Stop() {
	close(s.stopCh)
}

// Incr はキーのカウンターを増やす。
func (s *MemoryStore) Incr(_ context.Context, key string, win time.Duration) (int64, time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	w, ok := s.windows[key]
	if !ok || !now.Before(w.resetAt) {
		w = &window{resetAt: now.Add(win)}
		s.windows[key] = w
	}
	w.count++
	return w.count, w.resetAt.Sub(now), nil
}

// Len は現在保持しているウィンドウ数を返す。テスト用。
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.windows)
}

func (s *MemoryStore) sweepLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.sweep()
		case <-s.stopCh:
			return
		}
	}
}

// sweep は終了したウィンドウを削除する。
func (s *MemoryStore) sweep() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for key, w := range s.windows {
		if !now.Before(w.resetAt) {
			delete(s.windows, key)
		}
	}
}

// --- Redis実装 ---

// incrWindowScript はINCRと初回のPEXPIREを1往復で行い、増加後の値と残りミリ秒を返す。
// 有効期限が失われたキーにも期限を付け直す。
var incrWindowScript = redis.NewScript(`
	local count = redis.call("INCR", KEYS[1])
	local ttl = redis.call("PTTL", KEYS[1])
	if count == 1 or ttl < 0 then
		redis.call("PEXPIRE", KEYS[1], ARGV[1])
		ttl = tonumber(ARGV[1])
	end
	return {count, ttl}
`)

// RedisStore はRedisを使用したWindowStore。
// 複数インスタンスでカウンターを共有する場合に使用する。
type RedisStore struct {
	client  redis.Scripter
	prefix  string
	timeout time.Duration
}

// NewRedisStore は新しいRedisStoreを生成する。
func NewRedisStore(client redis.Scripter, prefix string, timeout time.Duration) *RedisStore {
	if timeout <= 0 {
		timeout = time.Second
	}
	return &RedisStore{client: client, prefix: prefix, timeout: timeout}
}

// Incr はキーのカウンターを増やす。
func (s *RedisStore) Incr(ctx context.Context, key string, win time.Duration) (int64, time.Duration, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	res, err := incrWindowScript.Run(ctx, s.client, []string{s.prefix + key}, win.Milliseconds()).Int64Slice()
	if err != nil {
		return 0, 0, fmt.Errorf("rate limit script: %w", err)
	}
	if len(res) != 2 {
		return 0, 0, fmt.Errorf("rate limit script: unexpected result length %d", len(res))
	}
	return res[0], time.Duration(res[1]) * time.Millisecond, nil
}

// NewRedisClient はURLからRedisクライアントを生成し、疎通を確認する。
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	opt.PoolTimeout = 4 * time.Second
	opt.ConnMaxIdleTime = 5 * time.Minute
	opt.MaxRetries = 3

	client := redis.NewClient(opt)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// compile-time interface checks
var (
	_ WindowStore = (*MemoryStore)(nil)
	_ WindowStore = (*RedisStore)(nil)
)
