// Package search implements permission-filtered search across a user's
// personal data and the workspaces they belong to.
//
// # Overview
//
// SearchAcrossWorkspaces searches, for one actor:
//
//   - the actor's own activity log, knowledge sources and workflows
//     (scope "personal", when IncludePersonal is set)
//   - the same data of every active member of every workspace the actor
//     belongs to and may read (scope "workspace")
//
// Visibility is workspace scoped: a workspace member sees teammates' data,
// a non member sees nothing from that workspace.
//
// # Scoring
//
//	score   = 0.75 * lexical + 0.25 * recency
//	lexical = share of query tokens found, +0.2 if the whole query appears, max 1
//	recency = 1 / (1 + ageDays/14)
//
// Workflows only match with a lexical score above zero. Results with the
// same composite id (domain, scope, workspace, owner, source id) collapse to
// the best scoring one. Results are ordered by score, then newest first.
//
// # Query Syntax
//
// Free text plus optional filters:
//
//	launch plan
//	launch type:knowledge
//	launch scope:personal
//	launch workspace:<id>
//
// # Usage Example
//
//	engine := search.NewEngine(manager, activityLog, knowledgeStore, workflowEngine,
//		search.WithMetrics(metrics),
//	)
//	resp, err := engine.SearchAcrossWorkspaces(ctx, search.Request{
//		ActorUserID:     "user-1",
//		Query:           "launch",
//		IncludePersonal: true,
//	})
//	for _, r := range resp.Results {
//		fmt.Printf("%s %s (score: %.2f)\n", r.OriginLabel, r.Title, r.Score)
//	}
package search
