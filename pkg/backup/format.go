package backup

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/tbshrst/talos-discovery/pkg/types"
)

// clusterRecord is the on-disk shape of one cluster.
type clusterRecord struct {
	ID         string                      `json:"id"`
	Affiliates map[string]*affiliateRecord `json:"affiliates"`
}

type affiliateRecord struct {
	ID         string     `json:"id"`
	Data       byteList   `json:"data"`
	Endpoints  []byteList `json:"endpoints"`
	Expiration time.Time  `json:"expiration"`
}

// byteList marshals as a JSON array of numbers instead of Go's default
// base64 string, which is the documented shape of the backup file.
type byteList []byte

func (b byteList) MarshalJSON() ([]byte, error) {
	out := make([]int, len(b))
	for i, v := range b {
		out[i] = int(v)
	}
	return json.Marshal(out)
}

func (b *byteList) UnmarshalJSON(data []byte) error {
	var in []int
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}

	out := make([]byte, len(in))
	for i, v := range in {
		if v < 0 || v > 255 {
			return fmt.Errorf("byte value out of range: %d", v)
		}
		out[i] = byte(v)
	}

	*b = out
	return nil
}

func toRecords(snapshots []*types.ClusterSnapshot) []*clusterRecord {
	records := make([]*clusterRecord, 0, len(snapshots))
	for _, snapshot := range snapshots {
		record := &clusterRecord{
			ID:         snapshot.ID,
			Affiliates: make(map[string]*affiliateRecord, len(snapshot.Affiliates)),
		}

		for id, affiliate := range snapshot.Affiliates {
			endpoints := make([]byteList, 0, len(affiliate.Endpoints))
			for _, ep := range affiliate.Endpoints {
				endpoints = append(endpoints, byteList(ep))
			}

			record.Affiliates[id] = &affiliateRecord{
				ID:         affiliate.ID,
				Data:       byteList(affiliate.Data),
				Endpoints:  endpoints,
				Expiration: affiliate.Expiration,
			}
		}

		records = append(records, record)
	}

	return records
}

func fromRecords(records []*clusterRecord) []*types.ClusterSnapshot {
	snapshots := make([]*types.ClusterSnapshot, 0, len(records))
	for _, record := range records {
		snapshot := &types.ClusterSnapshot{
			ID:         record.ID,
			Affiliates: make(map[string]*types.Affiliate, len(record.Affiliates)),
		}

		for id, affiliate := range record.Affiliates {
			endpoints := make([][]byte, 0, len(affiliate.Endpoints))
			for _, ep := range affiliate.Endpoints {
				endpoints = append(endpoints, []byte(ep))
			}

			snapshot.Affiliates[id] = &types.Affiliate{
				ID:         affiliate.ID,
				Data:       []byte(affiliate.Data),
				Endpoints:  endpoints,
				Expiration: affiliate.Expiration,
			}
		}

		snapshots = append(snapshots, snapshot)
	}

	return snapshots
}
