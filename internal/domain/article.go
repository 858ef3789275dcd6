package domain

import (
	"context"
	"time"
)

// Pipeline stages, in order. An article advances one stage at a time;
// StageDone is terminal.
const (
	StageResearch = "research"
	StageCampaign = "campaign"
	StageDraft    = "draft"
	StageEdit     = "edit"
	StageFinal    = "final"
	StageImage    = "image"
	StageSEO      = "seo"
	StageDone     = "done"
)

// StageOrder lists the pipeline stages in execution order.
var StageOrder = []string{
	StageResearch,
	StageCampaign,
	StageDraft,
	StageEdit,
	StageFinal,
	StageImage,
	StageSEO,
	StageDone,
}

// NextStage returns the stage following s, or StageDone when s is the last.
func NextStage(s string) string {
	for i, stage := range StageOrder {
		if stage == s && i+1 < len(StageOrder) {
			return StageOrder[i+1]
		}
	}
	return StageDone
}

// Article is one piece of content moving through the production pipeline.
// Artifacts holds the output of each completed stage, keyed by stage name.
type Article struct {
	ID        string // UUID
	UserEmail string
	Topic     string
	Stage     string
	Artifacts map[string]string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Done reports whether the article has finished the pipeline.
func (a *Article) Done() bool {
	return a.Stage == StageDone
}

// ArticleRepository defines data access for pipeline articles.
type ArticleRepository interface {
	Create(ctx context.Context, article *Article) error
	GetByID(ctx context.Context, id string) (*Article, error)
	ListByEmail(ctx context.Context, email string) ([]*Article, error)
	Update(ctx context.Context, article *Article) error
	Delete(ctx context.Context, id string) error
}
