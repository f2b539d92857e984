package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/apshuang/ShareDocs/internal/client"
	"github.com/apshuang/ShareDocs/internal/op"
)

// sharedocs-agent 是一个无界面的协作客户端：
// 登录后打开指定文档，实时跟随远端编辑，标准输入每行追加到文档末尾。
func main() {
	var (
		server    = flag.String("server", "http://localhost:8080", "服务端地址")
		username  = flag.String("user", "", "用户名")
		password  = flag.String("password", "", "密码")
		docID     = flag.Uint64("doc", 0, "文档ID")
		statePath = flag.String("state", "sharedocs-agent.db", "本地状态文件")
	)
	flag.Parse()
	if *docID == 0 {
		log.Fatal("missing -doc")
	}

	state, err := client.OpenLocalState(*statePath)
	if err != nil {
		log.Fatalf("open local state: %v", err)
	}
	defer state.Close()

	api := client.NewAPIClient(*server, state)
	ctx := context.Background()

	if api.Token == "" {
		if *username == "" || *password == "" {
			log.Fatal("no stored credentials, need -user and -password")
		}
		if _, err := api.Login(ctx, *username, *password); err != nil {
			log.Fatalf("login: %v", err)
		}
		log.Printf("logged in as %s", *username)
	}

	doc, err := api.GetDocument(ctx, *docID)
	if err != nil {
		log.Fatalf("get document: %v", err)
	}
	view := client.NewDocumentView(doc.Content, doc.CurrentVersion)
	log.Printf("document %q at version %d (%d chars)", doc.Title, doc.CurrentVersion, len([]rune(doc.Content)))

	wsBase := "ws" + strings.TrimPrefix(*server, "http") + "/ws"
	session := client.NewSession(client.SessionConfig{
		WSURL:      wsBase,
		Token:      api.Token,
		DocumentID: *docID,
		OnStateChange: func(connected bool) {
			log.Printf("session connected=%v", connected)
		},
	})

	session.On("operation_applied", func(data json.RawMessage) {
		var payload struct {
			UserID    uint64       `json:"user_id"`
			Operation op.Operation `json:"operation"`
			Version   uint64       `json:"version"`
		}
		if err := json.Unmarshal(data, &payload); err != nil {
			log.Printf("bad operation payload: %v", err)
			return
		}
		// 服务端广播包含提交者本人，自己刚提交的操作在这里会再收到一次
		if payload.Version <= view.Revision() {
			return
		}
		if err := view.ApplyRemote(payload.Operation, payload.Version); err != nil {
			// 本地镜像落后了，整体重拉
			log.Printf("apply failed (%v), resyncing", err)
			resync(ctx, api, view, *docID)
			return
		}
		log.Printf("v%d by user %d: %s", payload.Version, payload.UserID, payload.Operation.Type)
	})
	session.On("presence", func(data json.RawMessage) {
		var payload struct {
			Members []struct {
				Username string `json:"username"`
			} `json:"members"`
		}
		if err := json.Unmarshal(data, &payload); err != nil {
			return
		}
		names := make([]string, len(payload.Members))
		for i, m := range payload.Members {
			names[i] = m.Username
		}
		log.Printf("online: %s", strings.Join(names, ", "))
	})

	if err := session.Connect(); err != nil {
		log.Fatalf("connect: %v", err)
	}
	defer session.Close()

	// 心跳维持 presence
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for range ticker.C {
			session.Send("ping", nil)
		}
	}()

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		appendLine(ctx, api, view, *docID, line)
	}
}

// appendLine 在文档末尾插入一行；409 时重拉一次再试
func appendLine(ctx context.Context, api *client.APIClient, view *client.DocumentView, docID uint64, line string) {
	for attempt := 0; attempt < 2; attempt++ {
		end := len([]rune(view.Content()))
		operation := op.Operation{
			Type:        op.KindInsert,
			FromPos:     end,
			ToPos:       end,
			Content:     line + "\n",
			BaseVersion: view.Revision(),
		}
		result, err := api.SubmitOperation(ctx, docID, operation)
		if err == nil {
			_ = view.ApplyRemote(operation, result.Version)
			fmt.Printf("-> v%d\n", result.Version)
			return
		}
		var apiErr *client.APIError
		if errors.As(err, &apiErr) && apiErr.IsConflict() {
			resync(ctx, api, view, docID)
			continue
		}
		log.Printf("submit: %v", err)
		return
	}
	log.Printf("submit: still conflicting after resync, giving up")
}

func resync(ctx context.Context, api *client.APIClient, view *client.DocumentView, docID uint64) {
	doc, err := api.GetDocument(ctx, docID)
	if err != nil {
		log.Printf("resync: %v", err)
		return
	}
	view.Reset(doc.Content, doc.CurrentVersion)
}
