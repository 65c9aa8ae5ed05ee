package constants

import "strings"

// Persisted object layout. Everything the coordinator knows lives under these keys.
const (
	UnprocessedPrefix    = "attachments/unprocessed/"
	ProcessedPrefix      = "attachments/processed/"
	LocksPrefix          = "attachments/locks/"
	ArchivePrefix        = "attachments/all_attachments/"
	RawEmailPrefix       = "emails/raw/"
	GroupedPayloadPrefix = "emails/processed/"

	LastProcessedTimeKey = "metadata/last_processed_time"
	ProcessedIDsKey      = "metadata/processed_ids"

	lockSuffix           = ".lock"
	groupedPayloadSuffix = "_grouped.json"
)

// ItemID joins a business reference and an email id into a work item folder name.
func ItemID(reference, emailID string) string {
	return reference + "_" + emailID
}

// SplitItemID splits a folder name on the first "_". ok is false when either
// half would be empty.
func SplitItemID(itemID string) (reference, emailID string, ok bool) {
	reference, emailID, found := strings.Cut(itemID, "_")
	if !found || reference == "" || emailID == "" {
		return "", "", false
	}
	return reference, emailID, true
}

func UnprocessedItemPrefix(itemID string) string {
	return UnprocessedPrefix + itemID + "/"
}

func UnprocessedKey(itemID, emailID, filename string) string {
	return UnprocessedItemPrefix(itemID) + emailID + "_" + filename
}

// ProcessedKey maps a staged key to its destination under the processed prefix.
func ProcessedKey(unprocessedKey string) string {
	return ProcessedPrefix + strings.TrimPrefix(unprocessedKey, UnprocessedPrefix)
}

func ArchiveKey(reference, emailID, filename string) string {
	return ArchivePrefix + reference + "/" + emailID + "_" + filename
}

func LockName(itemID string) string {
	return LocksPrefix + itemID + lockSuffix
}

// ItemIDFromLock is the inverse of LockName.
func ItemIDFromLock(key string) (string, bool) {
	if !strings.HasPrefix(key, LocksPrefix) || !strings.HasSuffix(key, lockSuffix) {
		return "", false
	}
	return strings.TrimSuffix(strings.TrimPrefix(key, LocksPrefix), lockSuffix), true
}

func RawEmailKey(itemID string) string {
	return RawEmailPrefix + itemID + ".json"
}

func GroupedPayloadKey(reference string) string {
	return GroupedPayloadPrefix + reference + groupedPayloadSuffix
}

// IsGroupedPayloadKey reports whether key holds a persisted aggregated payload.
func IsGroupedPayloadKey(key string) bool {
	return strings.HasPrefix(key, GroupedPayloadPrefix) && strings.HasSuffix(key, groupedPayloadSuffix)
}
