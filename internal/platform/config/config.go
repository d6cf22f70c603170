package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"

	"conclave/pkg/domain"
)

// Config is the full runtime configuration, parsed from the environment.
// Required identifiers abort startup when absent; optional ones degrade the
// corresponding feature (the consumer logs a warning and carries on).
type Config struct {
	Server     Server
	Gateway    Gateway
	Community  Community
	Governance Governance
	Protection Protection
	Redis      Redis
	Postgres   Postgres
}

// Server configures the ops HTTP API.
type Server struct {
	Addr          string `env:"OPS_ADDR" envDefault:":8080"`
	JWTSigningKey string `env:"OPS_JWT_SIGNING_KEY"`
	LogLevel      string `env:"LOG_LEVEL" envDefault:"info"`
}

// Gateway configures the platform relay: outbound REST calls plus the
// inbound event webhook the relay posts to.
type Gateway struct {
	APIURL       string        `env:"GATEWAY_API_URL,required"`
	Token        string        `env:"GATEWAY_TOKEN"`
	IngestSecret string        `env:"GATEWAY_INGEST_SECRET,required"`
	EventBuffer  int           `env:"GATEWAY_EVENT_BUFFER" envDefault:"256"`
	Timeout      time.Duration `env:"GATEWAY_TIMEOUT" envDefault:"10s"`
}

// Community holds the platform identifiers the engine operates on.
type Community struct {
	GuildID             string `env:"GUILD_ID,required"`
	PrivilegedRoleID    string `env:"PRIVILEGED_ROLE_ID,required"`
	PendingRoleID       string `env:"PENDING_ROLE_ID,required"`
	SanctionedRoleID    string `env:"SANCTIONED_ROLE_ID,required"`
	GovernanceChannelID string `env:"GOVERNANCE_CHANNEL_ID,required"`
	LogChannelID        string `env:"LOG_CHANNEL_ID"`
	PurgeChannelID      string `env:"PURGE_CHANNEL_ID"`
	ProtectedRoleID     string `env:"PROTECTED_ROLE_ID"`
}

// Governance carries the per-kind ballot policies. Values are raw strings so
// env parsing stays dumb; Policies validates and converts them.
type Governance struct {
	AdmissionDeadline       time.Duration `env:"ADMISSION_DEADLINE" envDefault:"24h"`
	AdmissionRule           string        `env:"ADMISSION_RULE" envDefault:"simple_majority"`
	AdmissionMissingPolicy  string        `env:"ADMISSION_MISSING_POLICY" envDefault:"ignore"`
	AdmissionVisibility     string        `env:"ADMISSION_VISIBILITY" envDefault:"anonymous"`
	ManualDeadline          time.Duration `env:"MANUAL_SANCTION_DEADLINE" envDefault:"10m"`
	ManualRule              string        `env:"MANUAL_SANCTION_RULE" envDefault:"simple_majority"`
	ManualMissingPolicy     string        `env:"MANUAL_SANCTION_MISSING_POLICY" envDefault:"ignore"`
	ManualVisibility        string        `env:"MANUAL_SANCTION_VISIBILITY" envDefault:"public"`
	SevereDeadline          time.Duration `env:"SEVERE_SANCTION_DEADLINE" envDefault:"24h"`
	SevereRule              string        `env:"SEVERE_SANCTION_RULE" envDefault:"absolute_majority"`
	SevereMissingPolicy     string        `env:"SEVERE_SANCTION_MISSING_POLICY" envDefault:"count_as_no"`
	SevereVisibility        string        `env:"SEVERE_SANCTION_VISIBILITY" envDefault:"public"`
	SanctionRestoreAfter    time.Duration `env:"SANCTION_RESTORE_AFTER" envDefault:"24h"`
	CommandPrefix           string        `env:"COMMAND_PREFIX" envDefault:"!"`
}

// Protection tunes the Protection Engine.
type Protection struct {
	RevertProtectedRole  bool          `env:"REVERT_PROTECTED_ROLE" envDefault:"false"`
	AttributionFreshness time.Duration `env:"ATTRIBUTION_FRESHNESS" envDefault:"5s"`
	AttributionPageSize  int           `env:"ATTRIBUTION_PAGE_SIZE" envDefault:"5"`
	ReentryTTL           time.Duration `env:"REENTRY_TTL" envDefault:"24h"`
	SnapshotTTL          time.Duration `env:"SNAPSHOT_TTL" envDefault:"1h"`
	SnapshotCap          int           `env:"SNAPSHOT_CAP" envDefault:"1000"`
	SweepSpec            string        `env:"SWEEP_SPEC" envDefault:"@every 5m"`
}

// Redis selects the redis-backed snapshot store when set.
type Redis struct {
	URL string `env:"REDIS_URL"`
}

// Postgres selects the postgres-backed security-audit store when set.
type Postgres struct {
	DatabaseURL string `env:"DATABASE_URL"`
}

// Load parses the environment. Missing required variables fail here so main
// aborts before touching the platform.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse environment: %w", err)
	}
	if cfg.Community.PurgeChannelID == "" {
		cfg.Community.PurgeChannelID = cfg.Community.GovernanceChannelID
	}
	return cfg, nil
}

// KindPolicy is the validated per-kind ballot policy handed to the coordinator.
type KindPolicy struct {
	Visibility domain.Visibility
	Rule       domain.ResolutionRule
	Missing    domain.MissingVotePolicy
	Deadline   time.Duration
}

// Policies converts the raw governance strings into domain policies.
// Invalid enum values fail startup rather than surfacing mid-ballot.
func (g Governance) Policies() (map[domain.BallotKind]KindPolicy, error) {
	raw := []struct {
		kind       domain.BallotKind
		visibility string
		rule       string
		missing    string
		deadline   time.Duration
	}{
		{domain.BallotKindAdmission, g.AdmissionVisibility, g.AdmissionRule, g.AdmissionMissingPolicy, g.AdmissionDeadline},
		{domain.BallotKindManualSanction, g.ManualVisibility, g.ManualRule, g.ManualMissingPolicy, g.ManualDeadline},
		{domain.BallotKindSevereSanction, g.SevereVisibility, g.SevereRule, g.SevereMissingPolicy, g.SevereDeadline},
	}

	policies := make(map[domain.BallotKind]KindPolicy, len(raw))
	for _, r := range raw {
		visibility, err := domain.ParseVisibility(r.visibility)
		if err != nil {
			return nil, fmt.Errorf("%s visibility: %w", r.kind, err)
		}
		rule, err := domain.ParseResolutionRule(r.rule)
		if err != nil {
			return nil, fmt.Errorf("%s rule: %w", r.kind, err)
		}
		missing, err := domain.ParseMissingVotePolicy(r.missing)
		if err != nil {
			return nil, fmt.Errorf("%s missing-vote policy: %w", r.kind, err)
		}
		if r.deadline <= 0 {
			return nil, fmt.Errorf("%s deadline must be positive", r.kind)
		}
		policies[r.kind] = KindPolicy{
			Visibility: visibility,
			Rule:       rule,
			Missing:    missing,
			Deadline:   r.deadline,
		}
	}
	return policies, nil
}

// IDs converts the raw community identifiers into domain types.
func (c Community) IDs() (CommunityIDs, error) {
	privileged, err := domain.ParseRoleID(c.PrivilegedRoleID)
	if err != nil {
		return CommunityIDs{}, fmt.Errorf("privileged role id: %w", err)
	}
	pending, err := domain.ParseRoleID(c.PendingRoleID)
	if err != nil {
		return CommunityIDs{}, fmt.Errorf("pending role id: %w", err)
	}
	sanctioned, err := domain.ParseRoleID(c.SanctionedRoleID)
	if err != nil {
		return CommunityIDs{}, fmt.Errorf("sanctioned role id: %w", err)
	}
	governance, err := domain.ParseChannelID(c.GovernanceChannelID)
	if err != nil {
		return CommunityIDs{}, fmt.Errorf("governance channel id: %w", err)
	}
	purge, err := domain.ParseChannelID(c.PurgeChannelID)
	if err != nil {
		return CommunityIDs{}, fmt.Errorf("purge channel id: %w", err)
	}

	ids := CommunityIDs{
		Privileged:        privileged,
		Pending:           pending,
		Sanctioned:        sanctioned,
		GovernanceChannel: governance,
		PurgeChannel:      purge,
	}
	if c.LogChannelID != "" {
		logCh, err := domain.ParseChannelID(c.LogChannelID)
		if err != nil {
			return CommunityIDs{}, fmt.Errorf("log channel id: %w", err)
		}
		ids.LogChannel = logCh
	}
	if c.ProtectedRoleID != "" {
		protected, err := domain.ParseRoleID(c.ProtectedRoleID)
		if err != nil {
			return CommunityIDs{}, fmt.Errorf("protected role id: %w", err)
		}
		ids.Protected = protected
	}
	return ids, nil
}

// CommunityIDs is the validated form of Community. Zero-valued optional
// fields mean the feature is off.
type CommunityIDs struct {
	Privileged        domain.RoleID
	Pending           domain.RoleID
	Sanctioned        domain.RoleID
	Protected         domain.RoleID
	GovernanceChannel domain.ChannelID
	PurgeChannel      domain.ChannelID
	LogChannel        domain.ChannelID
}
