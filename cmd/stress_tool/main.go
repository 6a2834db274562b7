package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"seest/internal/client"
	authModel "seest/internal/domain/auth/model"
	postModel "seest/internal/domain/post/model"

	"github.com/google/uuid"
)

// 并发表情压测：N 个用户同时对同一条动态点表情、换表情、再取消，
// 检查每个用户最终最多一条表情且服务端没有出错
func main() {
	baseURL := flag.String("url", "http://localhost:8080", "server base URL")
	users := flag.Int("users", 200, "concurrent reacting users")
	flag.Parse()

	ctx := context.Background()

	author, err := signUp(ctx, *baseURL)
	if err != nil {
		log.Fatalf("创建作者失败: %v", err)
	}
	post, err := author.CreatePost(ctx, postModel.CreateInput{Activity: "Relaxing", Text: "reaction storm"})
	if err != nil {
		log.Fatalf("发布动态失败: %v", err)
	}

	fmt.Printf("注册 %d 个用户...\n", *users)
	apis := make([]*client.API, 0, *users)
	for i := 0; i < *users; i++ {
		api, err := signUp(ctx, *baseURL)
		if err != nil {
			log.Fatalf("注册用户失败: %v", err)
		}
		apis = append(apis, api)
	}

	emojis := postModel.ReactionEmojis
	rounds := []struct {
		name  string
		emoji func(i int) string
		want  func(i int) string // 该轮结束后期望的表情，空表示没有
	}{
		{"点表情", func(i int) string { return emojis[i%len(emojis)] }, func(i int) string { return emojis[i%len(emojis)] }},
		{"换表情", func(i int) string { return emojis[(i+1)%len(emojis)] }, func(i int) string { return emojis[(i+1)%len(emojis)] }},
		{"取消", func(i int) string { return emojis[(i+1)%len(emojis)] }, func(int) string { return "" }},
	}

	failed := false
	for _, round := range rounds {
		var wg sync.WaitGroup
		var errCount int64
		var mismatch int64
		start := time.Now()

		for i, api := range apis {
			wg.Add(1)
			go func(i int, api *client.API) {
				defer wg.Done()
				state, err := api.React(ctx, post.ID, round.emoji(i))
				if err != nil {
					atomic.AddInt64(&errCount, 1)
					return
				}
				if state != round.want(i) {
					atomic.AddInt64(&mismatch, 1)
				}
			}(i, api)
		}
		wg.Wait()

		fmt.Println("--------------------------------------------------")
		fmt.Printf("%s: 耗时 %v, 失败 %d, 返回状态不符 %d\n", round.name, time.Since(start), errCount, mismatch)
		if errCount > 0 || mismatch > 0 {
			failed = true
		}

		got, err := reactionsOf(ctx, author, post.ID)
		if err != nil {
			log.Fatalf("读取动态失败: %v", err)
		}
		expected := 0
		for i := range apis {
			if round.want(i) != "" {
				expected++
			}
		}
		fmt.Printf("表情数: %d (预期: %d)\n", len(got), expected)
		if len(got) != expected {
			failed = true
		}
	}
	fmt.Println("--------------------------------------------------")

	if failed {
		os.Exit(1)
	}
}

func signUp(ctx context.Context, baseURL string) (*client.API, error) {
	var token string
	api := client.NewAPI(baseURL, func() string { return token })
	id := uuid.NewString()[:8]
	s, err := api.SignUp(ctx, authModel.SignUpInput{
		Email:    "storm-" + id + "@example.com",
		Password: "storm-" + id,
		Name:     "Storm " + id,
	})
	if err != nil {
		return nil, err
	}
	token = s.Token
	return api, nil
}

func reactionsOf(ctx context.Context, api *client.API, postID string) (map[string]string, error) {
	posts, err := api.ListPosts(ctx)
	if err != nil {
		return nil, err
	}
	for _, p := range posts {
		if p.ID == postID {
			return p.Reactions, nil
		}
	}
	return nil, fmt.Errorf("post %s not found", postID)
}
