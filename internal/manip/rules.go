package manip

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/crowvane/nodeconv/internal/model"
)

// RenameRule rewrites matching name fragments. An empty replacement deletes
// the match.
type RenameRule struct {
	Raw     string
	Match   *regexp.Regexp
	Replace string
}

// EmojiRule prefixes the name with an emoji when the pattern matches.
type EmojiRule struct {
	Raw   string
	Match *regexp.Regexp
	Emoji string
}

type RuleError struct {
	Code    string
	Message string
	Hint    string
	Cause   error
}

func (e *RuleError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Cause == nil {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
}

func (e *RuleError) Unwrap() error { return e.Cause }

type ParseError struct {
	AppError model.AppError
	Cause    error
}

func (e *ParseError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Cause == nil {
		return fmt.Sprintf("%s: %s", e.AppError.Code, e.AppError.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.AppError.Code, e.AppError.Message, e.Cause)
}

func (e *ParseError) Unwrap() error { return e.Cause }

// ParseRename parses one rename directive: <MATCH>@<REPLACEMENT>, where the
// match side is a regular expression and `\@` escapes a literal @.
func ParseRename(raw string) (RenameRule, error) {
	matchRaw, replace, found := cutUnescaped(raw, '@')
	if !found {
		return RenameRule{}, &RuleError{
			Code:    "RENAME_PARSE_ERROR",
			Message: "rename 指令缺少 @ 分隔符",
			Hint:    "expected: <MATCH_REGEX>@<REPLACEMENT>",
		}
	}
	if strings.TrimSpace(matchRaw) == "" {
		return RenameRule{}, &RuleError{
			Code:    "RENAME_PARSE_ERROR",
			Message: "rename 匹配部分不能为空",
		}
	}
	if strings.ContainsAny(replace, "\r\n\x00") {
		return RenameRule{}, &RuleError{
			Code:    "RENAME_PARSE_ERROR",
			Message: "rename 替换部分包含控制字符",
		}
	}
	re, err := regexp.Compile(matchRaw)
	if err != nil {
		return RenameRule{}, &RuleError{
			Code:    "RENAME_PARSE_ERROR",
			Message: "rename 正则不可编译",
			Cause:   err,
		}
	}
	return RenameRule{Raw: raw, Match: re, Replace: replace}, nil
}

// ParseEmoji parses one emoji directive: <MATCH>,<EMOJI>.
func ParseEmoji(raw string) (EmojiRule, error) {
	matchRaw, emoji, found := strings.Cut(raw, ",")
	if !found {
		return EmojiRule{}, &RuleError{
			Code:    "EMOJI_PARSE_ERROR",
			Message: "emoji 指令缺少 , 分隔符",
			Hint:    "expected: <MATCH_REGEX>,<EMOJI>",
		}
	}
	emoji = strings.TrimSpace(emoji)
	if strings.TrimSpace(matchRaw) == "" || emoji == "" {
		return EmojiRule{}, &RuleError{
			Code:    "EMOJI_PARSE_ERROR",
			Message: "emoji 匹配/符号不能为空",
		}
	}
	re, err := regexp.Compile(matchRaw)
	if err != nil {
		return EmojiRule{}, &RuleError{
			Code:    "EMOJI_PARSE_ERROR",
			Message: "emoji 正则不可编译",
			Cause:   err,
		}
	}
	return EmojiRule{Raw: raw, Match: re, Emoji: emoji}, nil
}

// ParseRenames parses a directive list, blank lines skipped, errors carrying
// the 1-based position.
func ParseRenames(lines []string) ([]RenameRule, error) {
	out := make([]RenameRule, 0, len(lines))
	for i, raw := range lines {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		r, err := ParseRename(raw)
		if err != nil {
			return nil, wrapRuleError(err, i+1, raw)
		}
		out = append(out, r)
	}
	return out, nil
}

func ParseEmojis(lines []string) ([]EmojiRule, error) {
	out := make([]EmojiRule, 0, len(lines))
	for i, raw := range lines {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		e, err := ParseEmoji(raw)
		if err != nil {
			return nil, wrapRuleError(err, i+1, raw)
		}
		out = append(out, e)
	}
	return out, nil
}

// CompileMatchers compiles remark filter patterns (include/exclude lists).
func CompileMatchers(patterns []string) ([]*regexp.Regexp, error) {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for i, raw := range patterns {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		re, err := regexp.Compile(raw)
		if err != nil {
			return nil, &ParseError{
				AppError: model.AppError{
					Code:    "FILTER_PARSE_ERROR",
					Message: "过滤正则不可编译",
					Stage:   "parse_options",
					Line:    i + 1,
					Snippet: truncateSnippet(raw, 200),
				},
				Cause: err,
			}
		}
		out = append(out, re)
	}
	return out, nil
}

func wrapRuleError(err error, line int, raw string) error {
	var re *RuleError
	if errors.As(err, &re) {
		return &ParseError{
			AppError: model.AppError{
				Code:    re.Code,
				Message: re.Message,
				Stage:   "parse_options",
				Line:    line,
				Snippet: truncateSnippet(raw, 200),
				Hint:    re.Hint,
			},
			Cause: re.Cause,
		}
	}
	return &ParseError{
		AppError: model.AppError{
			Code:    "RULE_PARSE_ERROR",
			Message: "指令解析失败",
			Stage:   "parse_options",
			Line:    line,
			Snippet: truncateSnippet(raw, 200),
		},
		Cause: err,
	}
}

// cutUnescaped splits s at the first unescaped occurrence of sep and removes
// the escaping backslash from kept separators.
func cutUnescaped(s string, sep byte) (left, right string, found bool) {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '\\' && i+1 < len(s) && s[i+1] == sep {
			b.WriteByte(sep)
			i++
			continue
		}
		if c == sep {
			rest := strings.ReplaceAll(s[i+1:], "\\"+string(sep), string(sep))
			return b.String(), rest, true
		}
		b.WriteByte(c)
	}
	return b.String(), "", false
}

func truncateSnippet(s string, max int) string {
	s = strings.ReplaceAll(s, "\r", "")
	s = strings.ReplaceAll(s, "\n", "")
	if max <= 0 {
		return ""
	}
	if len(s) <= max {
		return s
	}
	return s[:max]
}
