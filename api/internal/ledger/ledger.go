// Package ledger maintains the hash chain over citizen reports. Each report
// is a block whose hash covers the immutable submission fields plus the
// previous block's hash; status changes never touch the chained fields, so
// resolving a report cannot break verification.
package ledger

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"time"

	"water-grid-monitoring-system/api/internal/models"
)

// GenesisHash is the previousHash sentinel for the first block.
const GenesisHash = "0"

// TimestampLayout is the millisecond UTC encoding the chain was built with.
// Changing it invalidates every stored hash, so it is a wire contract.
const TimestampLayout = "2006-01-02T15:04:05.000Z"

// hashContent fixes the key order of the hashed document. Field order here
// is the canonical order; do not reorder.
type hashContent struct {
	ID           string `json:"id"`
	Type         string `json:"type"`
	Location     string `json:"location"`
	Description  string `json:"description"`
	Timestamp    string `json:"timestamp"`
	PreviousHash string `json:"previousHash"`
}

func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// GenerateHash computes the block hash of a report from its immutable
// fields. A missing previous hash is read as the genesis sentinel.
func GenerateHash(report models.CitizenReport) string {
	prev := report.PreviousHash
	if prev == "" {
		prev = GenesisHash
	}
	payload, _ := json.Marshal(hashContent{
		ID:           report.ReportID.String(),
		Type:         report.Type,
		Location:     report.Location,
		Description:  report.Description,
		Timestamp:    FormatTimestamp(report.ReportedAt),
		PreviousHash: prev,
	})
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

// GenerateSignature binds a block hash to its submission timestamp.
func GenerateSignature(hash string, reportedAt time.Time) string {
	sum := sha256.Sum256([]byte(hash + ":" + FormatTimestamp(reportedAt)))
	return hex.EncodeToString(sum[:])
}

// VerifyReport recomputes a single report's hash and compares it to the
// stored value. The signature tag is checked separately; see VerifySignature.
func VerifyReport(report models.CitizenReport) bool {
	return GenerateHash(report) == report.ReportHash
}

// VerifySignature recomputes the integrity tag over the stored hash and
// submission timestamp.
func VerifySignature(report models.CitizenReport) bool {
	return GenerateSignature(report.ReportHash, report.ReportedAt) == report.Signature
}

// Verification is the outcome of a chain walk. InvalidBlock is the block
// number of the first failing block, -1 when the chain is intact.
type Verification struct {
	Valid         bool  `json:"valid"`
	BlocksChecked int   `json:"blocks_checked"`
	InvalidBlock  int64 `json:"invalid_block"`
}

// VerifyChain walks the chain in block order and stops at the first block
// whose hash does not match its content or whose previousHash does not
// match its predecessor. The genesis block has no predecessor to link to.
func VerifyChain(reports []models.CitizenReport) Verification {
	ordered := make([]models.CitizenReport, len(reports))
	copy(ordered, reports)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].BlockNumber < ordered[j].BlockNumber })

	result := Verification{Valid: true, InvalidBlock: -1}
	for i, r := range ordered {
		result.BlocksChecked++
		if GenerateHash(r) != r.ReportHash {
			result.Valid = false
			result.InvalidBlock = r.BlockNumber
			return result
		}
		if i > 0 && r.PreviousHash != ordered[i-1].ReportHash {
			result.Valid = false
			result.InvalidBlock = r.BlockNumber
			return result
		}
	}
	return result
}

// Stats summarizes the chain for the stats endpoint. GenesisHash and
// LatestHash are nil on an empty chain; InvalidBlock is -1 when the chain
// verifies.
type Stats struct {
	TotalBlocks  int            `json:"total_blocks"`
	Valid        bool           `json:"valid"`
	InvalidBlock int64          `json:"invalid_block"`
	GenesisHash  *string        `json:"genesis_hash"`
	LatestHash   *string        `json:"latest_hash"`
	LatestBlock  int64          `json:"latest_block"`
	ByStatus     map[string]int `json:"by_status"`
}

// ChainStats aggregates a full verification pass with the chain's endpoints
// and a per-status census.
func ChainStats(reports []models.CitizenReport) Stats {
	verification := VerifyChain(reports)
	stats := Stats{
		TotalBlocks:  len(reports),
		Valid:        verification.Valid,
		InvalidBlock: verification.InvalidBlock,
		LatestBlock:  -1,
		ByStatus:     make(map[string]int),
	}
	var genesis, latest *models.CitizenReport
	for i := range reports {
		r := &reports[i]
		stats.ByStatus[r.Status]++
		if genesis == nil || r.BlockNumber < genesis.BlockNumber {
			genesis = r
		}
		if latest == nil || r.BlockNumber > latest.BlockNumber {
			latest = r
		}
	}
	if genesis != nil {
		stats.GenesisHash = &genesis.ReportHash
	}
	if latest != nil {
		stats.LatestHash = &latest.ReportHash
		stats.LatestBlock = latest.BlockNumber
	}
	return stats
}

// NextBlock assigns the chain fields of a new report against the current
// tail (nil for an empty chain) and seals it with hash and signature. The
// caller is responsible for serializing concurrent appends.
func NextBlock(tail *models.CitizenReport, report models.CitizenReport, now time.Time) models.CitizenReport {
	if report.ReportedAt.IsZero() {
		report.ReportedAt = now
	}
	if tail == nil {
		report.PreviousHash = GenesisHash
		report.BlockNumber = 0
	} else {
		report.PreviousHash = tail.ReportHash
		report.BlockNumber = tail.BlockNumber + 1
	}
	report.ReportHash = GenerateHash(report)
	report.Signature = GenerateSignature(report.ReportHash, report.ReportedAt)
	return report
}
