/*
Copyright 2025 The Shipmate Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package gitrepo fetches change context from GitHub for the pipeline
// stages: the diff of a ref, file contents, and recent history.
package gitrepo

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/go-github/v57/github"
	"golang.org/x/oauth2"
)

// Commit is a trimmed view of one repository commit.
type Commit struct {
	SHA     string `json:"sha"`
	Message string `json:"message"`
	Author  string `json:"author"`
}

// Client wraps the GitHub API for owner/name repositories.
type Client struct {
	gh *github.Client
}

// NewClient creates a GitHub client. An empty token yields an
// unauthenticated client, which is enough for public repositories.
// baseURL overrides the API endpoint for GitHub Enterprise and tests.
func NewClient(ctx context.Context, token, baseURL string) (*Client, error) {
	httpClient := oauth2.NewClient(ctx, nil)
	if token != "" {
		httpClient = oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token}))
	}

	gh := github.NewClient(httpClient)
	if baseURL != "" {
		var err error
		gh, err = gh.WithEnterpriseURLs(baseURL, baseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to configure GitHub base URL %q: %w", baseURL, err)
		}
	}
	return &Client{gh: gh}, nil
}

// splitRepository parses "owner/name". Anything else is an error.
func splitRepository(repository string) (string, string, error) {
	parts := strings.Split(repository, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("repository must be owner/name, got %q", repository)
	}
	return parts[0], parts[1], nil
}

// Diff returns the unified diff introduced by ref, compared against its
// first parent.
func (c *Client) Diff(ctx context.Context, repository, ref string) (string, error) {
	owner, name, err := splitRepository(repository)
	if err != nil {
		return "", err
	}

	commit, _, err := c.gh.Repositories.GetCommit(ctx, owner, name, ref, nil)
	if err != nil {
		return "", fmt.Errorf("failed to fetch commit %s of %s: %w", ref, repository, err)
	}
	if len(commit.Parents) == 0 {
		return "", fmt.Errorf("commit %s of %s has no parent to diff against", ref, repository)
	}

	comparison, _, err := c.gh.Repositories.CompareCommits(ctx, owner, name, commit.Parents[0].GetSHA(), ref, nil)
	if err != nil {
		return "", fmt.Errorf("failed to compare %s against its parent in %s: %w", ref, repository, err)
	}

	var diff strings.Builder
	for _, file := range comparison.Files {
		fmt.Fprintf(&diff, "--- %s\n", file.GetFilename())
		diff.WriteString(file.GetPatch())
		diff.WriteString("\n")
	}
	return diff.String(), nil
}

// FileContents returns the decoded contents of path at ref.
func (c *Client) FileContents(ctx context.Context, repository, path, ref string) (string, error) {
	owner, name, err := splitRepository(repository)
	if err != nil {
		return "", err
	}

	contents, _, _, err := c.gh.Repositories.GetContents(ctx, owner, name, path,
		&github.RepositoryContentGetOptions{Ref: ref})
	if err != nil {
		return "", fmt.Errorf("failed to fetch %s at %s from %s: %w", path, ref, repository, err)
	}
	if contents == nil {
		return "", fmt.Errorf("%s at %s in %s is a directory, not a file", path, ref, repository)
	}

	decoded, err := contents.GetContent()
	if err != nil {
		return "", fmt.Errorf("failed to decode %s from %s: %w", path, repository, err)
	}
	return decoded, nil
}

// History returns up to limit recent commits reachable from ref.
func (c *Client) History(ctx context.Context, repository, ref string, limit int) ([]Commit, error) {
	owner, name, err := splitRepository(repository)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 20
	}

	commits, _, err := c.gh.Repositories.ListCommits(ctx, owner, name, &github.CommitsListOptions{
		SHA:         ref,
		ListOptions: github.ListOptions{PerPage: limit},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list commits of %s at %s: %w", repository, ref, err)
	}

	history := make([]Commit, 0, len(commits))
	for _, commit := range commits {
		entry := Commit{SHA: commit.GetSHA()}
		if commit.Commit != nil {
			entry.Message = commit.Commit.GetMessage()
			if commit.Commit.Author != nil {
				entry.Author = commit.Commit.Author.GetName()
			}
		}
		history = append(history, entry)
	}
	return history, nil
}
