package domain

// Marketplaces and staking protocols observed per entity
const (
	MarketBBL   = "bbl"
	MarketBoost = "boost"

	ProtocolDAODAO     = "daodao"
	ProtocolEnterprise = "enterprise"
)

// One entity as seen in one capture. Owner "" means the owner was not observed
type Record struct {
	Owner            string `json:"owner,omitempty"`
	BBLListed        bool   `json:"bbl_listed"`
	BoostListed      bool   `json:"boost_listed"`
	DAODAOStaked     bool   `json:"daodao_staked"`
	EnterpriseStaked bool   `json:"enterprise_staked"`
	Broken           bool   `json:"broken"`
}

// HasOwner reports whether the capture carried an owner for this entity.
func (r Record) HasOwner() bool {
	return r.Owner != ""
}

// Snapshot is a point-in-time capture; ids absent from the map were not observed
type Snapshot map[EntityID]Record

// Get returns the record for id and whether it was observed
func (s Snapshot) Get(id EntityID) (Record, bool) {
	r, ok := s[id]
	return r, ok
}
