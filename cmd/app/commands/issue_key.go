package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	apikeyDomain "github.com/allisson/agentauth/internal/apikey/domain"
	apikeyUseCase "github.com/allisson/agentauth/internal/apikey/usecase"
)

// RunIssueKey issues an API key for an agent and prints the plaintext secret.
// The secret is shown exactly once; only its hash is stored. An empty
// permissions list issues a master key that passes every tool permission
// check, so grant explicit permissions unless that is intended.
//
// Requirements: Database must be migrated and the agent registered.
func RunIssueKey(
	ctx context.Context,
	apiKeys apikeyUseCase.APIKeyUseCase,
	logger *slog.Logger,
	agentID string,
	tenantID string,
	keyName string,
	permissionsCSV string,
	expiresIn time.Duration,
	rateLimitPerMinute int,
	rateLimitPerHour int,
	format string,
	writer io.Writer,
) error {
	parsedAgentID, err := uuid.Parse(agentID)
	if err != nil {
		return fmt.Errorf("invalid agent id: %w", err)
	}
	parsedTenantID, err := uuid.Parse(tenantID)
	if err != nil {
		return fmt.Errorf("invalid tenant id: %w", err)
	}

	logger.Info("issuing api key",
		slog.String("agent_id", parsedAgentID.String()),
		slog.String("key_name", keyName),
	)

	input := &apikeyDomain.IssueKeyInput{
		AgentID:            parsedAgentID,
		TenantID:           parsedTenantID,
		KeyName:            keyName,
		GrantedPermissions: splitCSV(permissionsCSV),
	}
	if expiresIn > 0 {
		expiresAt := time.Now().UTC().Add(expiresIn)
		input.ExpiresAt = &expiresAt
	}
	if rateLimitPerMinute > 0 {
		input.RateLimitPerMinute = &rateLimitPerMinute
	}
	if rateLimitPerHour > 0 {
		input.RateLimitPerHour = &rateLimitPerHour
	}

	output, err := apiKeys.IssueKey(ctx, input)
	if err != nil {
		return fmt.Errorf("failed to issue key: %w", err)
	}

	if format == "json" {
		outputKeyJSON(output, writer)
	} else {
		outputKeyText(output, writer)
	}

	logger.Info("api key issued successfully",
		slog.String("key_id", output.Key.ID.String()),
		slog.String("key_prefix", output.Key.KeyPrefix),
	)

	return nil
}

// outputKeyText outputs the issued key in human-readable text format.
func outputKeyText(output *apikeyDomain.IssueKeyOutput, writer io.Writer) {
	_, _ = fmt.Fprintln(writer, "\nAPI key issued successfully!")
	_, _ = fmt.Fprintf(writer, "Key ID: %s\n", output.Key.ID.String())
	_, _ = fmt.Fprintf(writer, "Key prefix: %s\n", output.Key.KeyPrefix)
	_, _ = fmt.Fprintf(writer, "Secret: %s\n", output.PlainSecret)
	if output.Key.ExpiresAt != nil {
		_, _ = fmt.Fprintf(writer, "Expires at: %s\n", output.Key.ExpiresAt.Format(time.RFC3339))
	}
	_, _ = fmt.Fprintln(writer, "\nIMPORTANT: The secret is shown only once. Store it securely.")
}

// outputKeyJSON outputs the issued key in JSON format for machine consumption.
func outputKeyJSON(output *apikeyDomain.IssueKeyOutput, writer io.Writer) {
	result := map[string]any{
		"key_id":     output.Key.ID.String(),
		"key_prefix": output.Key.KeyPrefix,
		"secret":     output.PlainSecret,
	}
	if output.Key.ExpiresAt != nil {
		result["expires_at"] = output.Key.ExpiresAt.Format(time.RFC3339)
	}

	jsonBytes, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "failed to marshal JSON: %v\n", err)
		return
	}

	_, _ = fmt.Fprintln(writer, string(jsonBytes))
}
