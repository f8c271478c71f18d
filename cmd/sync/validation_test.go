package sync

import (
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scan-io-git/finding-sync/pkg/shared/config"
)

func changedSet(t *testing.T, names ...string) *pflag.FlagSet {
	fs := pflag.NewFlagSet("sync", pflag.ContinueOnError)
	for _, name := range []string{"no-sync-comments", "no-sync-link", "no-assignments"} {
		fs.Bool(name, false, "")
	}
	for _, n := range names {
		require.NoError(t, fs.Set(n, "true"))
	}
	return fs
}

func TestApplyOptions(t *testing.T) {
	on := true
	base := &config.Config{
		Source: config.Endpoint{URL: "https://sq.example.com", Token: "src", Project: "app", Branch: "main"},
		Sync:   config.Sync{AddSyncComments: &on, ServiceAccounts: []string{"bot"}},
	}

	cfg := applyOptions(base, &RunOptionsSync{
		TargetProject:  "app",
		TargetPR:       "42",
		NoSyncComments: true,
		Since:          "2024-06-01",
		Threads:        4,
	}, changedSet(t, "no-sync-comments"))

	assert.Equal(t, "https://sq.example.com", cfg.Target.URL)
	assert.Equal(t, "src", cfg.Target.Token)
	assert.Equal(t, "42", cfg.Target.PullRequest)
	assert.Equal(t, "main", cfg.Source.Branch)
	require.NotNil(t, cfg.Sync.AddSyncComments)
	assert.False(t, *cfg.Sync.AddSyncComments)
	assert.Nil(t, cfg.Sync.AddSyncLink)
	assert.Equal(t, "2024-06-01", cfg.Sync.Since)
	assert.Equal(t, 4, cfg.Search.Threads)
	assert.Equal(t, []string{"bot"}, cfg.Sync.ServiceAccounts)
	assert.True(t, *base.Sync.AddSyncComments, "base configuration must not change")

	cfg = applyOptions(base, &RunOptionsSync{SourcePR: "7"}, changedSet(t))
	assert.Equal(t, "", cfg.Source.Branch)
	assert.Equal(t, "7", cfg.Source.PullRequest)
}

func TestValidateSyncArgs(t *testing.T) {
	valid := func() *config.Config {
		return &config.Config{
			Source: config.Endpoint{URL: "https://sq.example.com", Project: "app", Branch: "main"},
			Target: config.Endpoint{URL: "https://sq.example.com", Project: "app", Branch: "release"},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*config.Config)
		format  string
		args    []string
		wantErr string
	}{
		{name: "valid"},
		{name: "html", format: FormatHTML},
		{name: "unknown format", format: "xml", wantErr: `unsupported format "xml"`},
		{name: "positional arguments", args: []string{"extra"}, wantErr: "unexpected positional arguments: extra"},
		{name: "missing source project", mutate: func(c *config.Config) { c.Source.Project = "" }, wantErr: "source project is required"},
		{name: "missing target url", mutate: func(c *config.Config) { c.Target.URL = "" }, wantErr: "target url is required"},
		{name: "branch and pull request", mutate: func(c *config.Config) { c.Target.PullRequest = "3" }, wantErr: "target cannot set both branch and pull_request"},
		{name: "same population", mutate: func(c *config.Config) { c.Target.Branch = "main" }, wantErr: "source and target designate the same findings"},
		{name: "bad since", mutate: func(c *config.Config) { c.Sync.Since = "yesterday" }, wantErr: "since must use the 2006-01-02 layout"},
		{name: "unknown ignore", mutate: func(c *config.Config) { c.Sync.Ignore = []string{"color"} }, wantErr: `unknown ignore dimension "color"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			if tt.mutate != nil {
				tt.mutate(cfg)
			}
			format := tt.format
			if format == "" {
				format = FormatJSON
			}
			err := validateSyncArgs(cfg, format, tt.args)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestDescribeEndpoint(t *testing.T) {
	assert.Equal(t, "app#42", describeEndpoint(config.Endpoint{Project: "app", PullRequest: "42"}))
	assert.Equal(t, "app@main", describeEndpoint(config.Endpoint{Project: "app", Branch: "main"}))
	assert.Equal(t, "app", describeEndpoint(config.Endpoint{Project: "app"}))
}
