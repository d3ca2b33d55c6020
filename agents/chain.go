package agents

import (
	"context"

	"github.com/sirupsen/logrus"
	"github.com/warp/payout-engine/generic"
)

// ApprovedChain returns the direct agent followed by its ancestors, walking
// parent references until a parent is absent, missing or not approved.
//
// An unknown direct agent is a NotFoundError; an unapproved one yields an
// empty chain. A parent reference that revisits an agent ends the walk with
// a warning instead of looping.
func ApprovedChain(ctx context.Context, agents AgentReader, start generic.AgentID, logger logrus.FieldLogger) ([]Agent, error) {
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	direct, err := agents.GetAgent(ctx, start)
	if err != nil {
		return nil, generic.Persist("get agent", err)
	}
	if direct == nil {
		return nil, generic.NotFound("agent", string(start))
	}
	if !direct.Status.IsApproved() {
		return nil, nil
	}

	chain := []Agent{*direct}
	visited := map[generic.AgentID]bool{direct.ID: true}

	for cur := direct; cur.ParentID != ""; {
		if visited[cur.ParentID] {
			logger.WithFields(logrus.Fields{
				"agent_id":  cur.ID,
				"parent_id": cur.ParentID,
			}).Warn("agent hierarchy cycle detected, chain truncated")
			break
		}
		parent, err := agents.GetAgent(ctx, cur.ParentID)
		if err != nil {
			return nil, generic.Persist("get agent", err)
		}
		if parent == nil || !parent.Status.IsApproved() {
			break
		}
		visited[parent.ID] = true
		chain = append(chain, *parent)
		cur = parent
	}
	return chain, nil
}
