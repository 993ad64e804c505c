package enums

import "fmt"

// DocumentType classifies what a co-ownership document is.
type DocumentType string

const (
	DocumentTypeOwnershipAgreement DocumentType = "ownership_agreement"
	DocumentTypePurchaseContract   DocumentType = "purchase_contract"
	DocumentTypeInsurance          DocumentType = "insurance"
	DocumentTypeMaintenanceRecord  DocumentType = "maintenance_record"
	DocumentTypeOther              DocumentType = "other"
)

var validDocumentTypes = []DocumentType{
	DocumentTypeOwnershipAgreement,
	DocumentTypePurchaseContract,
	DocumentTypeInsurance,
	DocumentTypeMaintenanceRecord,
	DocumentTypeOther,
}

// String implements fmt.Stringer.
func (t DocumentType) String() string {
	return string(t)
}

// IsValid reports whether the value is a known DocumentType.
func (t DocumentType) IsValid() bool {
	for _, candidate := range validDocumentTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParseDocumentType converts raw input into a DocumentType.
func ParseDocumentType(value string) (DocumentType, error) {
	for _, candidate := range validDocumentTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid document type %q", value)
}
