package documents

import (
	"fmt"
	"mime"
	"path"
	"sort"
	"strings"
	"unicode"

	"github.com/google/uuid"

	"github.com/coownly/esign-backend/pkg/enums"
)

type contentGroup string

const (
	contentGroupPDFs   contentGroup = "pdfs"
	contentGroupImages contentGroup = "images"
	contentGroupOffice contentGroup = "office"
	contentGroupText   contentGroup = "text"
)

var contentGroupNames = map[contentGroup]string{
	contentGroupPDFs:   "PDFs",
	contentGroupImages: "images",
	contentGroupOffice: "Word documents",
	contentGroupText:   "plain text",
}

var contentGroupTypes = map[contentGroup][]string{
	contentGroupPDFs:   {"application/pdf"},
	contentGroupImages: {"image/png", "image/jpeg", "image/webp"},
	contentGroupOffice: {"application/msword", "application/vnd.openxmlformats-officedocument.wordprocessingml.document"},
	contentGroupText:   {"text/plain"},
}

var allowedGroupsByType = map[enums.DocumentType][]contentGroup{
	enums.DocumentTypeOwnershipAgreement: {contentGroupPDFs, contentGroupOffice},
	enums.DocumentTypePurchaseContract:   {contentGroupPDFs, contentGroupOffice},
	enums.DocumentTypeInsurance:          {contentGroupPDFs, contentGroupImages},
	enums.DocumentTypeMaintenanceRecord:  {contentGroupPDFs, contentGroupImages, contentGroupText},
	enums.DocumentTypeOther:              {contentGroupPDFs, contentGroupImages, contentGroupOffice, contentGroupText},
}

var (
	contentTypesByDocType        = buildContentTypesByDocType()
	contentDescriptionsByDocType = buildContentDescriptions()
)

func buildContentTypesByDocType() map[enums.DocumentType][]string {
	result := make(map[enums.DocumentType][]string, len(allowedGroupsByType))
	for docType, groups := range allowedGroupsByType {
		set := make(map[string]struct{})
		for _, group := range groups {
			for _, value := range contentGroupTypes[group] {
				set[value] = struct{}{}
			}
		}
		list := make([]string, 0, len(set))
		for value := range set {
			list = append(list, value)
		}
		sort.Strings(list)
		result[docType] = list
	}
	return result
}

func buildContentDescriptions() map[enums.DocumentType]string {
	result := make(map[enums.DocumentType]string, len(allowedGroupsByType))
	for docType, groups := range allowedGroupsByType {
		var descriptions []string
		for _, group := range groups {
			if name, ok := contentGroupNames[group]; ok {
				descriptions = append(descriptions, name)
			}
		}
		result[docType] = humanReadableList(descriptions)
	}
	return result
}

func humanReadableList(items []string) string {
	switch len(items) {
	case 0:
		return ""
	case 1:
		return items[0]
	case 2:
		return fmt.Sprintf("%s or %s", items[0], items[1])
	default:
		return fmt.Sprintf("%s, or %s", strings.Join(items[:len(items)-1], ", "), items[len(items)-1])
	}
}

// normalizeContentType strips parameters and lowercases the media type.
func normalizeContentType(value string) (string, error) {
	clean := strings.TrimSpace(value)
	if clean == "" {
		return "", fmt.Errorf("content type required")
	}
	mediaType, _, err := mime.ParseMediaType(clean)
	if err != nil {
		return "", fmt.Errorf("content type invalid: %w", err)
	}
	if mediaType == "" {
		return "", fmt.Errorf("content type missing")
	}
	return strings.ToLower(mediaType), nil
}

func isAllowedContentType(docType enums.DocumentType, contentType string) bool {
	for _, candidate := range contentTypesByDocType[docType] {
		if candidate == contentType {
			return true
		}
	}
	return false
}

func allowedContentDescription(docType enums.DocumentType) string {
	if msg, ok := contentDescriptionsByDocType[docType]; ok && msg != "" {
		return msg
	}
	return "the approved content types"
}

func sanitizeFileName(name string) string {
	if name == "" {
		return ""
	}
	clean := path.Base(strings.ReplaceAll(strings.TrimSpace(name), "\\", "/"))
	if clean == "" || clean == "." || clean == "/" {
		return ""
	}
	var b strings.Builder
	b.Grow(len(clean))
	for _, r := range clean {
		switch {
		case r == '/' || r == '\\' || unicode.IsControl(r):
			continue
		case unicode.IsSpace(r):
			b.WriteRune('-')
		default:
			b.WriteRune(r)
		}
	}
	result := strings.Trim(b.String(), "-_.")
	result = strings.ReplaceAll(result, "..", ".")
	return result
}

// buildStorageKey embeds the version row id so concurrent uploads racing for
// the same version number never write to or discard each other's objects.
func buildStorageKey(groupID, documentID, versionID uuid.UUID, version int, fileName string) string {
	cleanName := sanitizeFileName(fileName)
	if cleanName == "" {
		cleanName = documentID.String()
	}
	return fmt.Sprintf("documents/%s/%s/v%d-%s/%s", groupID, documentID, version, versionID, cleanName)
}
