package token

// Metadata describes a token line. Its content is opaque to the ledger and is
// only persisted when the metadata extension is enabled.
type Metadata struct {
	Spec          string `json:"spec,omitempty"           bson:"spec,omitempty"`
	Title         string `json:"title,omitempty"          bson:"title,omitempty"`
	Description   string `json:"description,omitempty"    bson:"description,omitempty"`
	Media         string `json:"media,omitempty"          bson:"media,omitempty"`
	Reference     string `json:"reference,omitempty"      bson:"reference,omitempty"`
	ReferenceHash string `json:"reference_hash,omitempty" bson:"reference_hash,omitempty"`
	Extra         string `json:"extra,omitempty"          bson:"extra,omitempty"`
}
