package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/yourorg/draftmill/internal/domain"
	"github.com/yourorg/draftmill/internal/llm"
	"github.com/yourorg/draftmill/internal/observability/metrics"
	"github.com/yourorg/draftmill/internal/security/audit"
)

// StageNotifier receives pipeline progress events, used to push updates to
// connected websocket clients. Implementations must not block.
type StageNotifier interface {
	NotifyStage(articleID, stage, status string)
}

type noopNotifier struct{}

func (noopNotifier) NotifyStage(string, string, string) {}

// ArticleService orchestrates the content pipeline. Each advance runs the
// LLM generation for the article's current stage, stores the artifact and
// moves the article to the next stage.
type ArticleService struct {
	articles  domain.ArticleRepository
	generator llm.Generator
	prompts   *llm.PromptFormatter
	audit     *audit.Logger
	notifier  StageNotifier
	logger    *slog.Logger
}

// NewArticleService creates a new article service
func NewArticleService(
	articles domain.ArticleRepository,
	generator llm.Generator,
	prompts *llm.PromptFormatter,
	auditLog *audit.Logger,
	logger *slog.Logger,
) *ArticleService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ArticleService{
		articles:  articles,
		generator: generator,
		prompts:   prompts,
		audit:     auditLog,
		notifier:  noopNotifier{},
		logger:    logger,
	}
}

// SetNotifier installs a progress notifier. Must be called before the
// service starts handling requests.
func (s *ArticleService) SetNotifier(n StageNotifier) {
	if n != nil {
		s.notifier = n
	}
}

// CreateArticle starts a new article at the research stage.
func (s *ArticleService) CreateArticle(ctx context.Context, email, topic string, meta audit.RequestMeta) (*domain.Article, error) {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return nil, fmt.Errorf("%w: topic is required", domain.ErrValidation)
	}

	article := &domain.Article{
		UserEmail: email,
		Topic:     topic,
		Stage:     domain.StageResearch,
		Artifacts: map[string]string{},
	}
	if err := s.articles.Create(ctx, article); err != nil {
		return nil, err
	}

	s.audit.Log(ctx, email, domain.AuditArticleCreated, map[string]string{
		"article_id": article.ID,
		"topic":      topic,
	}, meta)

	return article, nil
}

// Advance runs the generation step for the article's current stage. Only
// the owner may advance an article; admins are not exempt because an
// article mid-pipeline belongs to its author's editorial flow.
func (s *ArticleService) Advance(ctx context.Context, email, articleID string, meta audit.RequestMeta) (*domain.Article, error) {
	article, err := s.articles.GetByID(ctx, articleID)
	if err != nil {
		return nil, err
	}
	if article.UserEmail != email {
		return nil, domain.ErrPermissionDenied
	}
	if article.Done() {
		return nil, fmt.Errorf("%w: article already completed the pipeline", domain.ErrValidation)
	}

	stage := article.Stage
	s.notifier.NotifyStage(article.ID, stage, "running")

	output, err := s.runStage(ctx, article)
	if err != nil {
		metrics.ObservePipelineAdvance(stage, "error")
		s.notifier.NotifyStage(article.ID, stage, "failed")
		s.logger.Error("pipeline stage failed",
			slog.String("article_id", article.ID),
			slog.String("stage", stage),
			slog.String("error", err.Error()),
		)
		return nil, err
	}

	article.Artifacts[stage] = output
	article.Stage = domain.NextStage(stage)
	if err := s.articles.Update(ctx, article); err != nil {
		metrics.ObservePipelineAdvance(stage, "error")
		return nil, err
	}

	metrics.ObservePipelineAdvance(stage, "success")
	s.notifier.NotifyStage(article.ID, stage, "completed")

	s.audit.Log(ctx, email, domain.AuditArticleAdvanced, map[string]string{
		"article_id": article.ID,
		"stage":      stage,
		"next_stage": article.Stage,
	}, meta)

	return article, nil
}

// GetArticle returns one article; non-owners are denied rather than told
// the article exists.
func (s *ArticleService) GetArticle(ctx context.Context, email, articleID string, isAdmin bool) (*domain.Article, error) {
	article, err := s.articles.GetByID(ctx, articleID)
	if err != nil {
		return nil, err
	}
	if article.UserEmail != email && !isAdmin {
		return nil, domain.ErrNotFound
	}
	return article, nil
}

// ListArticles returns the user's articles.
func (s *ArticleService) ListArticles(ctx context.Context, email string) ([]*domain.Article, error) {
	return s.articles.ListByEmail(ctx, email)
}

// DeleteArticle removes an article; only the owner or an admin may.
func (s *ArticleService) DeleteArticle(ctx context.Context, email, articleID string, isAdmin bool) error {
	article, err := s.articles.GetByID(ctx, articleID)
	if err != nil {
		return err
	}
	if article.UserEmail != email && !isAdmin {
		return domain.ErrNotFound
	}
	return s.articles.Delete(ctx, articleID)
}

// runStage formats the prompt for the article's current stage and calls the
// generator. Each stage consumes artifacts from earlier stages.
func (s *ArticleService) runStage(ctx context.Context, article *domain.Article) (string, error) {
	var (
		template string
		vars     map[string]string
	)

	switch article.Stage {
	case domain.StageResearch:
		template = "topic_research"
		vars = map[string]string{"topic": article.Topic}
	case domain.StageCampaign:
		template = "topic_campaign"
		vars = map[string]string{"research": article.Artifacts[domain.StageResearch]}
	case domain.StageDraft:
		template = "article_draft"
		vars = map[string]string{
			"topic":    article.Topic,
			"campaign": article.Artifacts[domain.StageCampaign],
		}
	case domain.StageEdit:
		template = "editing_criteria"
		vars = map[string]string{"draft": article.Artifacts[domain.StageDraft]}
	case domain.StageFinal:
		template = "final_article"
		vars = map[string]string{"edit": article.Artifacts[domain.StageEdit]}
	case domain.StageImage:
		template = "image_description"
		vars = map[string]string{"final": article.Artifacts[domain.StageFinal]}
	case domain.StageSEO:
		template = "seo_generation"
		vars = map[string]string{
			"final": article.Artifacts[domain.StageFinal],
			"image": article.Artifacts[domain.StageImage],
		}
	default:
		return "", fmt.Errorf("%w: unknown stage %q", domain.ErrValidation, article.Stage)
	}

	prompt, err := s.prompts.FormatPrompt(template, vars)
	if err != nil {
		return "", err
	}
	return s.generator.Generate(ctx, s.prompts.SystemPrompt(), prompt, 0)
}
