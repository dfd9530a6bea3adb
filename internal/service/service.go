// Package service implements the research API on top of the agent, the
// store and the event hub.
package service

import (
	"time"

	"github.com/vinodsharma/lg-deepresearch-agent/internal/agent"
	"github.com/vinodsharma/lg-deepresearch-agent/internal/agui"
	"github.com/vinodsharma/lg-deepresearch-agent/internal/auth"
	"github.com/vinodsharma/lg-deepresearch-agent/internal/config"
	"github.com/vinodsharma/lg-deepresearch-agent/internal/repository"
)

// Publisher fans journaled events out to live watchers of a thread.
type Publisher interface {
	Broadcast(threadID string, data []byte)
}

type Service struct {
	store      store.Store
	agent      *agent.Agent
	translator *agui.Translator
	approvals  *ApprovalBroker
	tokens     *auth.TokenIssuer
	publisher  Publisher
	config     *config.Config
	now        func() time.Time
}

// New creates the service. publisher may be nil when no watcher endpoint
// is served.
func New(st store.Store, ag *agent.Agent, approvals *ApprovalBroker, tokens *auth.TokenIssuer, publisher Publisher, cfg *config.Config) *Service {
	return &Service{
		store:      st,
		agent:      ag,
		translator: agui.NewTranslator(),
		approvals:  approvals,
		tokens:     tokens,
		publisher:  publisher,
		config:     cfg,
		now:        time.Now,
	}
}

// AgentInfo describes the served agent.
func (s *Service) AgentInfo() agent.Info {
	return s.agent.Info()
}

