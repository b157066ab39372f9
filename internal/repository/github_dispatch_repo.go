package repository

import (
	"ashare-backtest/config"
	"ashare-backtest/internal/dto"
	"ashare-backtest/pkg/httpclient"
	"ashare-backtest/pkg/logger"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

type GithubDispatchRepository interface {
	DispatchWorkflow(ctx context.Context, inputs map[string]string) error
}

type githubDispatchRepository struct {
	httpClient httpclient.HTTPClient
	cfg        *config.Config
	log        *logger.Logger
}

func NewGithubDispatchRepository(cfg *config.Config, log *logger.Logger) GithubDispatchRepository {
	return &githubDispatchRepository{
		httpClient: httpclient.New(cfg.Github.BaseURL, cfg.Github.Timeout, cfg.Github.Token,
			httpclient.WithHeader("Accept", "application/vnd.github+json"),
			httpclient.WithHeader("X-GitHub-Api-Version", "2022-11-28"),
		),
		cfg: cfg,
		log: log,
	}
}

func (r *githubDispatchRepository) DispatchWorkflow(ctx context.Context, inputs map[string]string) error {
	gh := r.cfg.Github
	if gh.Token == "" || gh.Owner == "" || gh.Repo == "" || gh.Workflow == "" {
		return fmt.Errorf("github workflow dispatch is not configured")
	}

	endpoint := fmt.Sprintf("/repos/%s/%s/actions/workflows/%s/dispatches", gh.Owner, gh.Repo, gh.Workflow)
	req := dto.WorkflowDispatchRequest{Ref: gh.Ref, Inputs: inputs}

	resp, err := r.httpClient.Post(ctx, endpoint, req, map[string]string{"Content-Type": "application/json"}, nil)
	if err != nil {
		return fmt.Errorf("failed to dispatch workflow: %w", err)
	}
	if resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusCreated {
		var ghErr dto.GithubErrorResponse
		_ = json.Unmarshal(resp.Body, &ghErr)
		r.log.ErrorContext(ctx, "GitHub workflow dispatch failed",
			logger.IntField("status_code", resp.StatusCode),
			logger.StringField("workflow", gh.Workflow),
			logger.StringField("body", string(resp.Body)))
		return fmt.Errorf("github dispatch returned status %d: %s", resp.StatusCode, ghErr.Message)
	}

	r.log.InfoContext(ctx, "GitHub workflow dispatched",
		logger.StringField("workflow", gh.Workflow),
		logger.StringField("ref", gh.Ref),
	)
	return nil
}
