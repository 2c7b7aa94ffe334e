package rpc

import (
	graphql "github.com/hasura/go-graphql-client"
	"github.com/stashapp/stash/pkg/plugin/common"

	"github.com/smegmarip/stash-face-attributes-plugin/internal/analysis"
	"github.com/smegmarip/stash-face-attributes-plugin/internal/config"
	"github.com/smegmarip/stash-face-attributes-plugin/internal/stash"
)

// Service is the main RPC service struct
type Service struct {
	stopping         bool
	serverConnection common.StashServerConnection
	graphqlClient    *graphql.Client
	config           *config.PluginConfig
	imageCache       *stash.ImageCache
	analyzer         *analysis.Analyzer
	dependencies     analysis.Factory
}

// AnalysisResponse is the task output envelope
type AnalysisResponse struct {
	Summary analysis.Summary  `json:"summary"`
	Results []analysis.Report `json:"results"`
}
