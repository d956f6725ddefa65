// Package triage 实现邮件列表的纯变换流水线。
//
// 固定顺序：filter → sort → group → paginate。全部是无副作用的纯函数，
// 相同输入永远产出相同的有序分组分页视图。
package triage

import (
	"sort"
	"strings"
	"time"

	"outprio/backend/internal/domain"
)

// SortDirection 排序方向
type SortDirection string

const (
	Ascending  SortDirection = "asc"
	Descending SortDirection = "desc"
)

// 按接收时间分组时的固定桶标签
const (
	GroupToday    = "Today"
	GroupThisWeek = "This week"
	GroupOlder    = "Older"
	GroupAll      = "All"
)

// Query 描述一次列表变换的全部参数。
type Query struct {
	Search    string
	SortKey   domain.SortColumn
	Direction SortDirection
	Page      int
	PageSize  int
	Now       time.Time // 分组用的"当前时间"，零值取 time.Now()
}

// Group 一个展示分组。Tier 仅在按重要度分组时有效。
type Group struct {
	Label   string               `json:"label"`
	Tier    domain.ImportanceTier `json:"tier,omitempty"`
	Records []domain.EmailRecord `json:"records"`
}

// View 流水线的最终产物：分组后的当前页加分页元数据。
type View struct {
	Groups    []Group `json:"groups"`
	Total     int     `json:"total"`     // 过滤后的总条数
	Page      int     `json:"page"`      // 实际页号（越界会被夹紧）
	PageCount int     `json:"pageCount"` // 总页数
}

// Apply 按固定顺序执行整条流水线。
func Apply(records []domain.EmailRecord, q Query) View {
	now := q.Now
	if now.IsZero() {
		now = time.Now()
	}

	filtered := Filter(records, q.Search)
	sorted := Sort(filtered, q.SortKey, q.Direction)
	page, pageNum, pageCount := Paginate(sorted, q.Page, q.PageSize)

	return View{
		Groups:    GroupRecords(page, q.SortKey, now),
		Total:     len(sorted),
		Page:      pageNum,
		PageCount: pageCount,
	}
}

// Filter 对发件人、主题、正文预览做大小写不敏感的子串匹配（三者取或）。
// 空搜索词匹配全部，输入顺序保持不变。
func Filter(records []domain.EmailRecord, search string) []domain.EmailRecord {
	if search == "" {
		out := make([]domain.EmailRecord, len(records))
		copy(out, records)
		return out
	}

	needle := strings.ToLower(search)
	out := make([]domain.EmailRecord, 0, len(records))
	for _, r := range records {
		if strings.Contains(strings.ToLower(r.Sender), needle) ||
			strings.Contains(strings.ToLower(r.Subject), needle) ||
			strings.Contains(strings.ToLower(r.Preview), needle) {
			out = append(out, r)
		}
	}
	return out
}

// Sort 按指定列排序，返回新切片。
//
// 按重要度排序时，同级之间再按接收时间降序；其余列按列值比较，
// 相等时保持输入相对顺序（稳定排序）。
func Sort(records []domain.EmailRecord, key domain.SortColumn, dir SortDirection) []domain.EmailRecord {
	out := make([]domain.EmailRecord, len(records))
	copy(out, records)

	asc := dir == Ascending
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		switch key {
		case domain.SortByImportance:
			if a.Importance != b.Importance {
				if asc {
					return a.Importance < b.Importance
				}
				return a.Importance > b.Importance
			}
			// 同级邮件：时间越晚越靠前（降序时）
			ta, tb := a.ReceivedAt(), b.ReceivedAt()
			if asc {
				return ta.Before(tb)
			}
			return tb.Before(ta)
		case domain.SortByReceived:
			ta, tb := a.ReceivedAt(), b.ReceivedAt()
			if asc {
				return ta.Before(tb)
			}
			return tb.Before(ta)
		case domain.SortBySender:
			return compareFold(a.Sender, b.Sender, asc)
		case domain.SortBySubject:
			return compareFold(a.Subject, b.Subject, asc)
		case domain.SortByPreview:
			return compareFold(a.Preview, b.Preview, asc)
		case domain.SortByReason:
			return compareFold(a.Reason, b.Reason, asc)
		}
		return false
	})
	return out
}

func compareFold(a, b string, asc bool) bool {
	la, lb := strings.ToLower(a), strings.ToLower(b)
	if asc {
		return la < lb
	}
	return la > lb
}

// GroupRecords 把已排序的记录装进展示分组。
//
//   - 按重要度：固定 {5,4,3,2} 顺序，空组省略；
//   - 按接收时间：{Today, This week, Older}，按本地日历日比较；
//   - 其他列：单个无标签分组。
func GroupRecords(records []domain.EmailRecord, key domain.SortColumn, now time.Time) []Group {
	switch key {
	case domain.SortByImportance:
		buckets := make(map[domain.ImportanceTier][]domain.EmailRecord, len(domain.TierOrder))
		for _, r := range records {
			buckets[r.Importance] = append(buckets[r.Importance], r)
		}
		out := make([]Group, 0, len(domain.TierOrder))
		for _, tier := range domain.TierOrder {
			if rs := buckets[tier]; len(rs) > 0 {
				out = append(out, Group{Label: tierGroupLabel(tier), Tier: tier, Records: rs})
			}
		}
		return out

	case domain.SortByReceived:
		var today, thisWeek, older []domain.EmailRecord
		weekAgo := now.Add(-7 * 24 * time.Hour)
		for _, r := range records {
			received := r.ReceivedAt()
			switch {
			case domain.SameLocalDay(received, now):
				today = append(today, r)
			case received.After(weekAgo):
				thisWeek = append(thisWeek, r)
			default:
				older = append(older, r)
			}
		}
		out := make([]Group, 0, 3)
		if len(today) > 0 {
			out = append(out, Group{Label: GroupToday, Records: today})
		}
		if len(thisWeek) > 0 {
			out = append(out, Group{Label: GroupThisWeek, Records: thisWeek})
		}
		if len(older) > 0 {
			out = append(out, Group{Label: GroupOlder, Records: older})
		}
		return out
	}

	if len(records) == 0 {
		return nil
	}
	return []Group{{Label: GroupAll, Records: records}}
}

func tierGroupLabel(tier domain.ImportanceTier) string {
	switch tier {
	case domain.TierCritical:
		return "Critical"
	case domain.TierMajor:
		return "Major"
	case domain.TierHigh:
		return "High"
	case domain.TierMedium:
		return "Medium"
	}
	return ""
}

// Paginate 切出指定页。页号从 1 开始，越界会被夹紧到 [1, pageCount]。
// 返回该页记录、实际页号和总页数。
func Paginate(records []domain.EmailRecord, page, pageSize int) ([]domain.EmailRecord, int, int) {
	if pageSize <= 0 {
		pageSize = domain.DefaultEntriesPerPage
	}

	pageCount := (len(records) + pageSize - 1) / pageSize
	if pageCount == 0 {
		pageCount = 1
	}
	if page < 1 {
		page = 1
	}
	if page > pageCount {
		page = pageCount
	}

	start := (page - 1) * pageSize
	if start >= len(records) {
		return nil, page, pageCount
	}
	end := start + pageSize
	if end > len(records) {
		end = len(records)
	}
	return records[start:end], page, pageCount
}

// ToggleDirection 实现表头点击语义：同列再点翻转方向，换列重置为降序。
func ToggleDirection(current domain.SortColumn, currentDir SortDirection, clicked domain.SortColumn) (domain.SortColumn, SortDirection) {
	if current == clicked {
		if currentDir == Ascending {
			return clicked, Descending
		}
		return clicked, Ascending
	}
	return clicked, Descending
}
