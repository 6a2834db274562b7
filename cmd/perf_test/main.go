package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"sync"
	"time"

	"seest/internal/client"
	authModel "seest/internal/domain/auth/model"
	postModel "seest/internal/domain/post/model"
	"seest/internal/pkg/realtime"
	"seest/pkg/loadtest"

	"github.com/google/uuid"
)

func main() {
	var (
		baseURL     = flag.String("url", "http://localhost:8080", "server base URL")
		testType    = flag.String("type", "all", "test type: feed, realtime, all")
		concurrency = flag.Int("concurrency", 50, "concurrent workers for the feed test")
		duration    = flag.Duration("duration", 30*time.Second, "feed test duration")
		listeners   = flag.Int("listeners", 20, "realtime subscribers")
		posts       = flag.Int("posts", 50, "posts published during the realtime test")
		help        = flag.Bool("help", false, "show help")
	)
	flag.Parse()

	if *help {
		flag.Usage()
		return
	}

	fmt.Println("🚀 Seest 性能测试工具")
	fmt.Println("================================")

	if err := checkHealth(*baseURL); err != nil {
		log.Fatalf("❌ 服务器不可用: %s: %v", *baseURL, err)
	}
	fmt.Printf("✅ 服务器可用: %s\n\n", *baseURL)

	ctx := context.Background()
	switch *testType {
	case "feed":
		runFeed(ctx, *baseURL, *concurrency, *duration)
	case "realtime":
		runRealtime(ctx, *baseURL, *listeners, *posts)
	case "all":
		runFeed(ctx, *baseURL, *concurrency, *duration)
		runRealtime(ctx, *baseURL, *listeners, *posts)
	default:
		fmt.Printf("❌ 未知的测试类型: %s\n", *testType)
		flag.Usage()
		os.Exit(1)
	}
}

func checkHealth(baseURL string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	return nil
}

// signUp 注册一个一次性账号，返回带 Token 的 API
func signUp(ctx context.Context, baseURL string) (*client.API, *authModel.Session, error) {
	var token string
	api := client.NewAPI(baseURL, func() string { return token })
	id := uuid.NewString()[:8]
	s, err := api.SignUp(ctx, authModel.SignUpInput{
		Email:    "perf-" + id + "@example.com",
		Password: "perf-" + id,
		Name:     "Perf " + id,
	})
	if err != nil {
		return nil, nil, err
	}
	token = s.Token
	return api, s, nil
}

// runFeed 并发拉取动态流
func runFeed(ctx context.Context, baseURL string, concurrency int, duration time.Duration) {
	fmt.Println("🔄 动态流拉取")
	api, _, err := signUp(ctx, baseURL)
	if err != nil {
		log.Fatalf("❌ 注册测试账号失败: %v", err)
	}
	res := loadtest.Run(ctx, "GET /posts", concurrency, duration, func(ctx context.Context) error {
		_, err := api.ListPosts(ctx)
		return err
	})
	res.Print()
}

// runRealtime 测量发布动态到订阅方收到变更的延迟
func runRealtime(ctx context.Context, baseURL string, listeners, posts int) {
	fmt.Println("📡 实时推送延迟")
	author, _, err := signUp(ctx, baseURL)
	if err != nil {
		log.Fatalf("❌ 注册测试账号失败: %v", err)
	}

	type arrival struct {
		id string
		at time.Time
	}
	var (
		mu       sync.Mutex
		arrivals []arrival
	)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var done sync.WaitGroup
	for i := 0; i < listeners; i++ {
		api, s, err := signUp(ctx, baseURL)
		if err != nil {
			log.Fatalf("❌ 注册订阅账号失败: %v", err)
		}
		token := s.Token
		src := realtime.NewWSSource(api.StreamURL(), func() string { return token })
		stream, err := src.Subscribe(ctx, realtime.Filter{Tables: []string{"posts"}, Types: []realtime.ChangeType{realtime.Insert}})
		if err != nil {
			log.Fatalf("❌ 订阅失败: %v", err)
		}

		done.Add(1)
		go func() {
			defer done.Done()
			received := 0
			for c := range stream {
				mu.Lock()
				arrivals = append(arrivals, arrival{id: c.ID, at: time.Now()})
				mu.Unlock()
				received++
				if received == posts {
					return
				}
			}
		}()
	}

	// 变更可能先于创建请求返回到达，发送时间单独记录，结束后再对齐
	rec := &loadtest.Recorder{}
	sentAt := make(map[string]time.Time, posts)
	start := time.Now()
	for i := 0; i < posts; i++ {
		sent := time.Now()
		p, err := author.CreatePost(ctx, postModel.CreateInput{Activity: "Working", Text: fmt.Sprintf("perf #%d", i)})
		if err != nil {
			rec.Observe(0, err)
			continue
		}
		sentAt[p.ID] = sent
	}

	wait := make(chan struct{})
	go func() {
		done.Wait()
		close(wait)
	}()
	select {
	case <-wait:
	case <-time.After(30 * time.Second):
		fmt.Println("⚠️ 部分订阅方未在 30s 内收到全部变更")
		cancel()
		<-wait
	}

	mu.Lock()
	for _, a := range arrivals {
		if t, ok := sentAt[a.id]; ok {
			rec.Observe(a.at.Sub(t), nil)
		}
	}
	mu.Unlock()

	rec.Summarize("posts INSERT fan-out", listeners, time.Since(start)).Print()
}
