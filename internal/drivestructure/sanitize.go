package drivestructure

import (
	"regexp"
	"strings"
	"time"
)

// Fallback names used when a title sanitizes to nothing.
const (
	FallbackUser   = "User"
	FallbackGroup  = "Group"
	FallbackTask   = "Task"
	FallbackThread = "Thread"
)

// Fixed folder names.
const (
	DefaultRootName = "SmartLens"
	SharedName      = "Shared"
	AICacheName     = "AI_Cache"
	UsersName       = "Users"
	ThreadsName     = "Threads"
	PeopleName      = "People"
	PrivateName     = "Private"
	ContentsName    = "Contents"
)

const maxNameRunes = 100

// Letters and marks of any script (kana and kanji included) plus decimal digits survive.
var unsafeChars = regexp.MustCompile(`[^\p{L}\p{M}\p{Nd} _-]`)

// SanitizeName keeps letters, digits, spaces, hyphens and underscores,
// trims the result, and falls back when nothing is left.
func SanitizeName(s, fallback string) string {
	s = strings.TrimSpace(unsafeChars.ReplaceAllString(s, ""))
	if r := []rune(s); len(r) > maxNameRunes {
		s = strings.TrimSpace(string(r[:maxNameRunes]))
	}
	if s == "" {
		return fallback
	}
	return s
}

func prefix(s string, n int) string {
	if r := []rune(s); len(r) > n {
		return string(r[:n])
	}
	return s
}

// UserFolderName names a user's private root, e.g. "[User] Taro_u1abcd".
func UserFolderName(displayName, userID string) string {
	return "[User] " + SanitizeName(displayName, FallbackUser) + "_" + prefix(userID, 6)
}

func GroupFolderName(name, chatID string) string {
	return SanitizeName(name, FallbackGroup) + "_" + chatID
}

// DMFolderName orders the ids so both participants resolve the same folder.
func DMFolderName(uidA, uidB string) string {
	if uidB < uidA {
		uidA, uidB = uidB, uidA
	}
	return "DM_" + uidA + "_" + uidB
}

func TaskFolderName(title, taskID string) string {
	return "Task_" + SanitizeName(title, FallbackTask) + "_" + prefix(taskID, 8)
}

func ThreadFolderName(title, threadID string) string {
	return SanitizeName(title, FallbackThread) + "_" + threadID
}

// MessageFolderName names a per-message attachment folder, e.g. "u1_2026-01-02T03-04-05.000Z".
func MessageFolderName(userID string, at time.Time) string {
	ts := at.UTC().Format("2006-01-02T15:04:05.000Z")
	return userID + "_" + strings.ReplaceAll(ts, ":", "-")
}
