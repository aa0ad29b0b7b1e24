package ledger

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"water-grid-monitoring-system/api/internal/models"
)

var baseTime = time.Date(2026, 3, 14, 9, 26, 53, 589000000, time.UTC)

func submission(i int) models.CitizenReport {
	return models.CitizenReport{
		ReportID:    uuid.NewSHA1(uuid.NameSpaceOID, []byte{byte(i)}),
		Type:        "leak",
		Location:    "5th and Main",
		Description: "water pooling at the curb",
		Status:      "pending",
		ReportedAt:  baseTime.Add(time.Duration(i) * time.Minute),
	}
}

func buildChain(n int) []models.CitizenReport {
	chain := make([]models.CitizenReport, 0, n)
	var tail *models.CitizenReport
	for i := 0; i < n; i++ {
		block := NextBlock(tail, submission(i), baseTime)
		chain = append(chain, block)
		tail = &chain[len(chain)-1]
	}
	return chain
}

func TestFormatTimestamp(t *testing.T) {
	got := FormatTimestamp(baseTime)
	if got != "2026-03-14T09:26:53.589Z" {
		t.Fatalf("timestamp = %q", got)
	}
	// Non-UTC input must normalize before formatting.
	est := time.FixedZone("EST", -5*3600)
	if FormatTimestamp(baseTime.In(est)) != got {
		t.Fatal("timestamp must be timezone independent")
	}
}

func TestGenerateHashShape(t *testing.T) {
	h := GenerateHash(submission(0))
	if len(h) != 64 {
		t.Fatalf("hash length = %d, want 64", len(h))
	}
	if h != strings.ToLower(h) {
		t.Fatal("hash must be lowercase hex")
	}
}

func TestGenerateHashDeterministic(t *testing.T) {
	a := GenerateHash(submission(0))
	b := GenerateHash(submission(0))
	if a != b {
		t.Fatalf("same content hashed differently: %s vs %s", a, b)
	}
}

func TestGenerateHashIgnoresStatus(t *testing.T) {
	r := submission(0)
	before := GenerateHash(r)
	r.Status = "resolved"
	if GenerateHash(r) != before {
		t.Fatal("status must not participate in the hash")
	}
}

func TestGenerateHashSensitivity(t *testing.T) {
	base := GenerateHash(submission(0))

	r := submission(0)
	r.Description = "water pooling at the curb!"
	if GenerateHash(r) == base {
		t.Fatal("description change must change the hash")
	}

	r = submission(0)
	r.ReportedAt = r.ReportedAt.Add(time.Millisecond)
	if GenerateHash(r) == base {
		t.Fatal("timestamp change must change the hash")
	}

	r = submission(0)
	r.PreviousHash = GenerateHash(submission(1))
	if GenerateHash(r) == base {
		t.Fatal("previousHash change must change the hash")
	}
}

func TestEmptyPreviousHashReadsAsGenesis(t *testing.T) {
	r := submission(0)
	r.PreviousHash = ""
	implicit := GenerateHash(r)
	r.PreviousHash = GenesisHash
	if GenerateHash(r) != implicit {
		t.Fatal("empty previousHash must hash like the genesis sentinel")
	}
}

func TestNextBlockProtocol(t *testing.T) {
	chain := buildChain(3)

	if chain[0].BlockNumber != 0 || chain[0].PreviousHash != GenesisHash {
		t.Fatalf("unexpected genesis block: %+v", chain[0])
	}
	for i := 1; i < 3; i++ {
		if chain[i].BlockNumber != int64(i) {
			t.Fatalf("block %d numbered %d", i, chain[i].BlockNumber)
		}
		if chain[i].PreviousHash != chain[i-1].ReportHash {
			t.Fatalf("block %d not linked to its predecessor", i)
		}
	}
	for _, b := range chain {
		if !VerifyReport(b) {
			t.Fatalf("freshly built block %d fails verification", b.BlockNumber)
		}
		if !VerifySignature(b) {
			t.Fatalf("freshly built block %d fails signature check", b.BlockNumber)
		}
	}
}

func TestVerifyReportChecksHashOnly(t *testing.T) {
	chain := buildChain(1)

	// A divergent signature is not tamper evidence against the hash.
	unsigned := chain[0]
	unsigned.Signature = ""
	if !VerifyReport(unsigned) {
		t.Fatal("hash-valid report rejected over its signature")
	}
	if VerifySignature(unsigned) {
		t.Fatal("blank signature passed the signature check")
	}

	tampered := chain[0]
	tampered.Description = "something else entirely"
	if VerifyReport(tampered) {
		t.Fatal("tampered report passed hash verification")
	}
}

func TestVerifyChainValid(t *testing.T) {
	got := VerifyChain(buildChain(3))
	if !got.Valid || got.InvalidBlock != -1 || got.BlocksChecked != 3 {
		t.Fatalf("unexpected verification: %+v", got)
	}
}

func TestVerifyChainEmpty(t *testing.T) {
	got := VerifyChain(nil)
	if !got.Valid || got.BlocksChecked != 0 {
		t.Fatalf("empty chain should verify: %+v", got)
	}
}

func TestVerifyChainDetectsTamper(t *testing.T) {
	chain := buildChain(3)
	chain[1].Description = "nothing to see here"
	got := VerifyChain(chain)
	if got.Valid {
		t.Fatal("tampered chain verified")
	}
	if got.InvalidBlock != 1 {
		t.Fatalf("invalid block = %d, want 1", got.InvalidBlock)
	}
}

func TestVerifyChainDetectsBrokenLink(t *testing.T) {
	chain := buildChain(3)
	// Rebuild block 2's hash over a forged previousHash: content checks
	// out, the link does not.
	chain[2].PreviousHash = GenerateHash(submission(9))
	chain[2].ReportHash = GenerateHash(chain[2])
	chain[2].Signature = GenerateSignature(chain[2].ReportHash, chain[2].ReportedAt)
	got := VerifyChain(chain)
	if got.Valid {
		t.Fatal("relinked chain verified")
	}
	if got.InvalidBlock != 2 {
		t.Fatalf("invalid block = %d, want 2", got.InvalidBlock)
	}
}

func TestVerifyChainSortsByBlockNumber(t *testing.T) {
	chain := buildChain(3)
	shuffled := []models.CitizenReport{chain[2], chain[0], chain[1]}
	got := VerifyChain(shuffled)
	if !got.Valid {
		t.Fatalf("order of input must not matter: %+v", got)
	}
}

func TestStatusChangeDoesNotBreakChain(t *testing.T) {
	chain := buildChain(3)
	chain[0].Status = "resolved"
	chain[2].Status = "investigating"
	if got := VerifyChain(chain); !got.Valid {
		t.Fatalf("status updates broke the chain: %+v", got)
	}
}

func TestChainStats(t *testing.T) {
	empty := ChainStats(nil)
	if empty.TotalBlocks != 0 || !empty.Valid || empty.InvalidBlock != -1 {
		t.Fatalf("unexpected empty stats: %+v", empty)
	}
	if empty.GenesisHash != nil || empty.LatestHash != nil {
		t.Fatalf("empty chain hashes must be null: %+v", empty)
	}
	if empty.LatestBlock != -1 {
		t.Fatalf("empty latest block = %d, want -1", empty.LatestBlock)
	}

	chain := buildChain(3)
	chain[1].Status = "resolved"
	got := ChainStats(chain)
	if got.TotalBlocks != 3 || !got.Valid || got.InvalidBlock != -1 || got.LatestBlock != 2 {
		t.Fatalf("unexpected stats: %+v", got)
	}
	if got.GenesisHash == nil || *got.GenesisHash != chain[0].ReportHash {
		t.Fatal("genesis hash should be block 0's hash")
	}
	if got.LatestHash == nil || *got.LatestHash != chain[2].ReportHash {
		t.Fatal("latest hash should be the tail's hash")
	}
	if got.ByStatus["pending"] != 2 || got.ByStatus["resolved"] != 1 {
		t.Fatalf("unexpected status counts: %+v", got.ByStatus)
	}
}

func TestChainStatsReportsTamper(t *testing.T) {
	chain := buildChain(3)
	chain[1].Location = "moved"
	got := ChainStats(chain)
	if got.Valid {
		t.Fatal("tampered chain reported as valid")
	}
	if got.InvalidBlock != 1 {
		t.Fatalf("invalid block = %d, want 1", got.InvalidBlock)
	}
	if got.TotalBlocks != 3 {
		t.Fatalf("total blocks = %d, want 3", got.TotalBlocks)
	}
}
