package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"time"

	"NewsCrew/sdk/go/newscrew"
)

func main() {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/tasks", func(w http.ResponseWriter, r *http.Request) {
		var sub newscrew.TaskSubmission
		_ = json.NewDecoder(r.Body).Decode(&sub)
		w.WriteHeader(http.StatusAccepted)
		_ = json.NewEncoder(w).Encode(newscrew.Task{
			ID:        "task-demo",
			Kind:      sub.Kind,
			Subject:   sub.Subject,
			Status:    "pending",
			CreatedAt: time.Now().Unix(),
		})
	})
	mux.HandleFunc("GET /api/v1/tasks/task-demo", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(newscrew.Task{
			ID:      "task-demo",
			Kind:    "content_pack",
			Subject: "Go 1.24",
			Status:  "succeeded",
			Result: &newscrew.TaskResult{
				Article: "# Go 1.24\nGeneric type aliases are here.",
				Posts:   []newscrew.Post{{Platform: "Twitter", Content: "Go 1.24 is out!"}},
			},
		})
	})

	srv := httptest.NewServer(mux)
	defer srv.Close()

	client, err := newscrew.NewClient(srv.URL, srv.Client())
	if err != nil {
		panic(err)
	}
	client.SetAccessToken("demo-token")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	submitted, err := client.SubmitTask(ctx, newscrew.TaskSubmission{Kind: "content_pack", Subject: "Go 1.24"})
	if err != nil {
		panic(err)
	}
	fmt.Printf("submitted task %s (status=%s)\n", submitted.ID, submitted.Status)

	done, err := client.GetTask(ctx, submitted.ID, 30*time.Second)
	if err != nil {
		panic(err)
	}
	fmt.Printf("task %s finished with %d posts\n%s\n", done.ID, len(done.Result.Posts), done.Result.Article)
}
