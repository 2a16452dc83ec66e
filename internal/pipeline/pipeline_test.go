package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/solguard/solguard/internal/domain"
	"github.com/solguard/solguard/internal/providers"
)

func writeSolanaRepo(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	dir := filepath.Join(root, "programs", "vault-swap", "src")
	require.NoError(t, os.MkdirAll(dir, 0o755))

	src := `use anchor_lang::prelude::*;

pub fn close_vault(ctx: Context<CloseVault>) -> Result<()> {
    let vault = ctx.accounts.vault.to_account_info();
    **ctx.accounts.authority.lamports.borrow_mut() += vault.lamports();
    **vault.lamports.borrow_mut() = 0;
    Ok(())
}
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "lib.rs"), []byte(src), 0o644))

	// should be excluded from the walk entirely
	sdkDir := filepath.Join(root, "sdk")
	require.NoError(t, os.MkdirAll(sdkDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(sdkDir, "client.rs"), []byte("fn unrelated() {}"), 0o644))

	return root
}

func TestClassifyRepo(t *testing.T) {
	require.Equal(t, domain.ProtocolDex, ClassifyRepo(domain.RepoHandle{Name: "turbo-swap"}))
	require.Equal(t, domain.ProtocolLending, ClassifyRepo(domain.RepoHandle{Name: "solend-core"}))
	require.Equal(t, domain.ProtocolOther, ClassifyRepo(domain.RepoHandle{Name: "random-utils"}))
}

func TestScanStatic_ExcludesSDKAndStampsRepoName(t *testing.T) {
	root := writeSolanaRepo(t)
	repo := domain.RepoHandle{Name: "vault-swap", Path: root}

	findings, stats := ScanStatic(context.Background(), repo)

	require.Equal(t, 1, stats.FilesWalked, "sdk/client.rs must be excluded from the walk")
	require.NotEmpty(t, findings)
	for _, f := range findings {
		require.Equal(t, "vault-swap", f.Repo)
	}
}

func TestScanStatic_EmptyRepoProducesNoFindingsNoError(t *testing.T) {
	root := t.TempDir()
	repo := domain.RepoHandle{Name: "empty", Path: root}

	findings, stats := ScanStatic(context.Background(), repo)
	require.Empty(t, findings)
	require.Equal(t, 0, stats.FilesWalked)
}

func TestScanRepo_DeepModeMergesAgentFindings(t *testing.T) {
	root := writeSolanaRepo(t)
	repo := domain.RepoHandle{Name: "vault-swap", Path: root}

	scripted := providers.NewScriptedProvider("scripted-test-model", providers.ScriptedTurn{
		Text: `[{"severity": "high", "file": "programs/vault-swap/src/lib.rs", "line": 1, "title": "agent-found issue", "description": "d"}]`,
	})

	narratives := []domain.Narrative{
		{Title: "vault protocols surging", Confidence: 0.9, ActiveRepos: []string{"vault-swap"}},
	}

	result := ScanRepo(context.Background(), repo, narratives, Options{
		Deep:     true,
		NVal:     2,
		Provider: scripted,
	})

	require.NotEmpty(t, result.Findings)
	var sawAgentFinding bool
	for _, f := range result.Findings {
		if f.PatternID == "AGENT-001" {
			sawAgentFinding = true
		}
	}
	require.True(t, sawAgentFinding, "expected the scripted agent finding to survive the merge")
}

func TestRun_LinksFindingsToNarrativesAndScores(t *testing.T) {
	root := writeSolanaRepo(t)
	repo := domain.RepoHandle{Name: "vault-swap", Path: root}

	narratives := []domain.Narrative{
		{Title: "vault protocols surging", Confidence: 0.8, ActiveRepos: []string{"vault-swap"}},
	}

	results, scored, orphans := Run(context.Background(), []domain.RepoHandle{repo}, narratives, Options{NRepo: 2})

	require.Len(t, results, 1)
	require.Len(t, scored, 1)
	require.Greater(t, scored[0].RiskScore, 0.0)
	require.Empty(t, orphans)
}
