package audit

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/agentmesh/core/pkg/types"
)

// Signer signs a canonical digest string, returning the signature and
// an identifier for the key/identity that produced it.
type Signer interface {
	Sign(digest string) (signature, signerID string, err error)
	Verify(digest, signature, signerID string) error
}

// requiredClaims are the claim keys every finalized artifact must carry
// (spec §4.9 invariant: "the required claim set includes
// core.totalTasks").
var requiredClaims = []string{"core.totalTasks"}

// Session accumulates records and claims for one task's audit trail
// until Finalize seals them into an immutable AuditArtifact. Grounded
// on this package's own Logger: a single-writer struct behind a mutex,
// SHA256 hashing via hashString's idiom, and uuid.NewString for
// identifiers.
type Session struct {
	mu        sync.Mutex
	seed      string
	execHash  string
	records   []types.AuditRecord
	claims    map[string]any
	finalized bool
}

// OpenSession starts a new audit session seeded with an initial
// identifier, the task's execution hash, and any records already
// produced before the session was opened (e.g. replayed from a prior
// partial run).
func OpenSession(seed, executionHash string, records []types.AuditRecord) *Session {
	s := &Session{
		seed:     seed,
		execHash: executionHash,
		claims:   make(map[string]any),
	}
	s.records = append(s.records, records...)
	return s
}

// AddRecord appends one more canonicalized record. A no-op once the
// session is finalized.
func (s *Session) AddRecord(record types.AuditRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finalized {
		return
	}
	s.records = append(s.records, record)
}

// AddClaim records a namespaced key/value claim (e.g.
// "core.totalTasks", "provider.fallbackCount"). A no-op once the
// session is finalized.
func (s *Session) AddClaim(key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finalized {
		return
	}
	s.claims[key] = value
}

// FinalizeOptions configures Finalize.
type FinalizeOptions struct {
	Signer     Signer
	DigestAlgo types.DigestAlgo
}

// Finalize seals the session into an immutable AuditArtifact. Calling
// Finalize more than once returns the same sealed artifact rather than
// recomputing it, honoring "artifacts are immutable post-finalize".
func (s *Session) Finalize(opts FinalizeOptions) (types.AuditArtifact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	algo := opts.DigestAlgo
	if algo == "" {
		algo = types.DigestSHA256
	}

	records := make([]types.AuditRecord, len(s.records))
	copy(records, s.records)
	claims := make(map[string]any, len(s.claims))
	for k, v := range s.claims {
		claims[k] = v
	}

	digestValue := computeDigest(algo, records, claims)

	artifact := types.AuditArtifact{
		ID:            uuid.NewString(),
		Version:       1,
		Seed:          s.seed,
		ExecutionHash: s.execHash,
		Claims:        claims,
		Digest:        types.Digest{Algo: algo, Value: digestValue},
		Timestamp:     time.Now(),
		Records:       records,
	}

	if opts.Signer != nil {
		sig, signerID, err := opts.Signer.Sign(digestValue)
		if err != nil {
			return types.AuditArtifact{}, fmt.Errorf("audit: sign digest: %w", err)
		}
		artifact.Signature = sig
		artifact.SignerID = signerID
	}

	s.finalized = true
	return artifact, nil
}

// canonicalInput builds the digest input string: each record
// canonicalized as "id|success?|JSON(value)|error", newline-joined,
// followed by the claims separator and stable-key-sorted claims JSON
// (spec §4.9, literal).
func canonicalInput(records []types.AuditRecord, claims map[string]any) string {
	var b strings.Builder
	for i, r := range records {
		if i > 0 {
			b.WriteByte('\n')
		}
		valueJSON, _ := json.Marshal(r.Value)
		b.WriteString(r.ID)
		b.WriteByte('|')
		b.WriteString(boolString(r.Success))
		b.WriteByte('|')
		b.Write(valueJSON)
		b.WriteByte('|')
		b.WriteString(r.Error)
	}
	b.WriteString("\n--claims--\n")
	b.WriteString(sortedClaimsJSON(claims))
	return b.String()
}

func boolString(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

func sortedClaimsJSON(claims map[string]any) string {
	keys := make([]string, 0, len(claims))
	for k := range claims {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	ordered := make([]struct {
		K string `json:"k"`
		V any    `json:"v"`
	}, len(keys))
	for i, k := range keys {
		ordered[i] = struct {
			K string `json:"k"`
			V any    `json:"v"`
		}{K: k, V: claims[k]}
	}
	out, _ := json.Marshal(ordered)
	return string(out)
}

func computeDigest(algo types.DigestAlgo, records []types.AuditRecord, claims map[string]any) string {
	input := canonicalInput(records, claims)
	switch algo {
	case types.DigestFNV1a32:
		h := fnv.New32a()
		_, _ = h.Write([]byte(input))
		return fmt.Sprintf("%08x", h.Sum32())
	default:
		sum := sha256.Sum256([]byte(input))
		return hex.EncodeToString(sum[:])
	}
}

// Verdict enumerates Verify's failure modes. An empty Verdict means the
// artifact verified cleanly.
type Verdict string

const (
	VerdictOK              Verdict = ""
	VerdictDigestMismatch  Verdict = "digest-mismatch"
	VerdictSignatureInvalid Verdict = "signature-invalid"
)

// MissingClaimVerdict formats the "missing-claim:<k>" verdict for a
// specific required claim key.
func MissingClaimVerdict(key string) Verdict {
	return Verdict("missing-claim:" + key)
}

// Verify recomputes artifact's digest from its own records and claims
// and checks it against the stored digest, checks every required claim
// is present, and — if a signer is given — verifies the signature.
// SHA256 verification runs on its own goroutine per spec §4.9 ("when
// sha256, runs asynchronously"); FNV verification is cheap enough to
// run inline.
func Verify(artifact types.AuditArtifact, signer Signer) Verdict {
	for _, k := range requiredClaims {
		if _, ok := artifact.Claims[k]; !ok {
			return MissingClaimVerdict(k)
		}
	}

	verify := func() Verdict {
		recomputed := computeDigest(artifact.Digest.Algo, artifact.Records, artifact.Claims)
		if recomputed != artifact.Digest.Value {
			return VerdictDigestMismatch
		}
		if signer != nil && artifact.Signature != "" {
			if err := signer.Verify(artifact.Digest.Value, artifact.Signature, artifact.SignerID); err != nil {
				return VerdictSignatureInvalid
			}
		}
		return VerdictOK
	}

	if artifact.Digest.Algo != types.DigestSHA256 {
		return verify()
	}

	result := make(chan Verdict, 1)
	go func() { result <- verify() }()
	return <-result
}
