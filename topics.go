package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"wp_article_publisher/publisher"
)

// loadTopics reads one topic per line, skipping blanks and # comments.
func loadTopics(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var topics []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		topics = append(topics, line)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if len(topics) == 0 {
		return nil, errors.New("topics file is empty")
	}
	return topics, nil
}

func printResults(w io.Writer, results []publisher.Result) {
	for _, r := range results {
		switch r.Outcome {
		case publisher.OutcomeSuccess:
			fmt.Fprintf(w, "[ok] %s -> post %d (%s, slug %s)\n", r.Topic, *r.PostID, r.Status, r.Slug)
		default:
			fmt.Fprintf(w, "[%s] %s: %s\n", r.Outcome, r.Topic, r.Error)
		}
	}
	fmt.Fprintf(w, "done: %d/%d published\n", publisher.CountSuccess(results), len(results))
}
