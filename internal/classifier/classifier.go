// Package classifier 根据用户的 VIP 名单给邮件打分并给出原因标签。
package classifier

import (
	"regexp"
	"strings"

	"outprio/backend/internal/domain"
)

// Message 是参与打分的最小邮件视图。收件地址应是小写 SMTP 地址。
type Message struct {
	Sender     string   // 显示名
	SenderSMTP string   // 小写 SMTP 地址
	To         []string // To 行收件人
	Recipients []string // To + CC 全部收件人
	Body       string   // 纯文本正文
}

// Classifier 由用户设置编译而来，可跨多封邮件复用。
type Classifier struct {
	vipEmails map[string]struct{}
	vipNames  map[string]struct{}
	ownAddrs  map[string]struct{}
	mentions  []string
	groupName string
}

// New 从用户设置编译一个分类器。
// 提及关键词取全名的各个单词（过短的词丢弃，避免误命中）。
func New(s *domain.UserSettings) *Classifier {
	c := &Classifier{
		vipEmails: make(map[string]struct{}),
		vipNames:  make(map[string]struct{}),
		ownAddrs:  make(map[string]struct{}),
		groupName: s.VIPGroupName,
	}
	for _, v := range s.VIPContacts() {
		if v.Email != "" {
			c.vipEmails[strings.ToLower(v.Email)] = struct{}{}
		}
		if v.Name != "" {
			c.vipNames[strings.ToLower(v.Name)] = struct{}{}
		}
	}
	if s.OutlookEmail != "" {
		c.ownAddrs[strings.ToLower(s.OutlookEmail)] = struct{}{}
	}
	for _, alias := range s.AliasList() {
		c.ownAddrs[strings.ToLower(alias)] = struct{}{}
	}
	for _, word := range strings.Fields(strings.ToLower(s.FullName)) {
		if len(word) >= 3 {
			c.mentions = append(c.mentions, word)
		}
	}
	return c
}

// Rate 复刻原始评分表：
//
//	VIP + Sole-To   → 5
//	VIP + Mention   → 5
//	VIP Sender      → 4
//	Mention Only    → 4
//	Sole-To Only    → 3
//	Small To Group  → 2（To 行 2~3 人且包含自己）
//	VIP Recipients  → 2（自己在收件人里且 To 行有 VIP）
//	其余            → 0，丢弃
//
// 规则自上而下短路，原因标签用 " + " 连接多个成因。
func (c *Classifier) Rate(m Message) (domain.ImportanceTier, string) {
	isVIP := c.isVIPSender(m)
	soleTo := len(m.To) == 1 && c.isOwn(m.To[0])
	mention := c.isMentioned(m.Body)

	switch {
	case isVIP && soleTo:
		return domain.TierCritical, c.groupName + " + Sole-To"
	case isVIP && mention:
		return domain.TierCritical, c.groupName + " + Mention"
	case isVIP:
		return domain.TierMajor, c.groupName + " Sender"
	case mention:
		return domain.TierMajor, "Mention Only"
	case soleTo:
		return domain.TierHigh, "Sole-To Only"
	}

	if c.containsOwn(m.To) && len(m.To) >= 2 && len(m.To) <= 3 {
		return domain.TierMedium, "Small To Group"
	}
	if c.containsOwn(m.Recipients) && c.containsVIP(m.To) {
		return domain.TierMedium, c.groupName + " Recipients"
	}
	return domain.TierNone, ""
}

func (c *Classifier) isVIPSender(m Message) bool {
	if _, ok := c.vipEmails[strings.ToLower(m.SenderSMTP)]; ok {
		return true
	}
	_, ok := c.vipNames[strings.ToLower(m.Sender)]
	return ok
}

func (c *Classifier) isOwn(addr string) bool {
	_, ok := c.ownAddrs[strings.ToLower(addr)]
	return ok
}

func (c *Classifier) containsOwn(addrs []string) bool {
	for _, a := range addrs {
		if c.isOwn(a) {
			return true
		}
	}
	return false
}

func (c *Classifier) containsVIP(addrs []string) bool {
	for _, a := range addrs {
		if _, ok := c.vipEmails[strings.ToLower(a)]; ok {
			return true
		}
	}
	return false
}

func (c *Classifier) isMentioned(body string) bool {
	lower := strings.ToLower(body)
	for _, kw := range c.mentions {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// 回复链分隔符。命中最早一处之前的内容视为最新一封。
var replyMarker = regexp.MustCompile(`(?im)(` +
	`^[ \t]*On\s+\d{1,2}\s+\w+\s+\d{4},\s*at\s*\d{1,2}:\d{2},\s*.+?\s+wrote:` +
	`|^[ \t]*On\s+.+\s+wrote:` +
	`|^[ \t]*-----Original Message-----` +
	`|^[ \t]*From:.+` +
	`|^[ \t]*De\s*:.+` +
	`)`)

// ExtractLastMessage 截取回复链中最新的一段正文。
func ExtractLastMessage(body string) string {
	if loc := replyMarker.FindStringIndex(body); loc != nil {
		body = body[:loc[0]]
	}
	return strings.TrimSpace(body)
}

var exchangeDN = regexp.MustCompile(`/cn=([^/]+)$`)

// NormalizeSender 把 Exchange 旧式 DN 发件人还原成可读名字。
// DN 末段形如 "xxxx-first.last"，取连字符后的 first.last 两段首字母大写；
// 解析不出来时退回 SMTP 地址。
func NormalizeSender(name, smtp string) string {
	if !strings.HasPrefix(name, "/o=") {
		if name != "" {
			return name
		}
		return smtp
	}

	seg := name
	if m := exchangeDN.FindStringSubmatch(name); m != nil {
		seg = m[1]
	} else if i := strings.LastIndex(name, "/cn="); i >= 0 {
		seg = name[i+len("/cn="):]
	}
	if i := strings.Index(seg, "-"); i >= 0 {
		fnln := seg[i+1:]
		if first, last, ok := strings.Cut(fnln, "."); ok {
			return capitalize(first) + " " + capitalize(last)
		}
	}
	if smtp != "" {
		return smtp
	}
	return name
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + strings.ToLower(s[1:])
}
