package triage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"outprio/backend/internal/domain"
)

func record(id, sender, subject string, tier domain.ImportanceTier, received string) domain.EmailRecord {
	return domain.EmailRecord{
		MessageID:      id,
		ConversationID: "conv-" + id,
		Sender:         sender,
		Subject:        subject,
		Preview:        subject + " 的正文预览",
		Received:       received,
		Importance:     tier,
		Reason:         "VIP Sender",
	}
}

func TestFilter(t *testing.T) {
	records := []domain.EmailRecord{
		record("1", "Alice Zhang", "Quarterly Report", domain.TierCritical, "2026-08-30T09:00:00"),
		record("2", "Bob Li", "Lunch plans", domain.TierMedium, "2026-08-30T08:00:00"),
		record("3", "Carol Wang", "REPORT follow-up", domain.TierHigh, "2026-08-29T17:00:00"),
	}

	t.Run("空搜索词返回全部", func(t *testing.T) {
		out := Filter(records, "")
		assert.Len(t, out, 3)
	})

	t.Run("大小写不敏感匹配主题", func(t *testing.T) {
		out := Filter(records, "report")
		assert.Len(t, out, 2)
		assert.Equal(t, "1", out[0].MessageID)
		assert.Equal(t, "3", out[1].MessageID)
	})

	t.Run("匹配发件人", func(t *testing.T) {
		out := Filter(records, "bob")
		assert.Len(t, out, 1)
		assert.Equal(t, "2", out[0].MessageID)
	})

	t.Run("匹配正文预览", func(t *testing.T) {
		out := Filter(records, "正文预览")
		assert.Len(t, out, 3)
	})

	t.Run("无匹配返回空", func(t *testing.T) {
		out := Filter(records, "不存在的词")
		assert.Empty(t, out)
	})

	t.Run("不修改输入切片", func(t *testing.T) {
		out := Filter(records, "")
		out[0].MessageID = "mutated"
		assert.Equal(t, "1", records[0].MessageID)
	})
}

func TestSortImportanceTieBreak(t *testing.T) {
	records := []domain.EmailRecord{
		record("old-critical", "a", "s", domain.TierCritical, "2026-08-29T09:00:00"),
		record("medium", "b", "s", domain.TierMedium, "2026-08-30T12:00:00"),
		record("new-critical", "c", "s", domain.TierCritical, "2026-08-30T09:00:00"),
		record("major", "d", "s", domain.TierMajor, "2026-08-28T09:00:00"),
	}

	t.Run("降序按级别，同级按时间倒序", func(t *testing.T) {
		out := Sort(records, domain.SortByImportance, Descending)
		ids := []string{out[0].MessageID, out[1].MessageID, out[2].MessageID, out[3].MessageID}
		assert.Equal(t, []string{"new-critical", "old-critical", "major", "medium"}, ids)
	})

	t.Run("升序时同级按时间正序", func(t *testing.T) {
		out := Sort(records, domain.SortByImportance, Ascending)
		assert.Equal(t, "medium", out[0].MessageID)
		assert.Equal(t, "major", out[1].MessageID)
		assert.Equal(t, "old-critical", out[2].MessageID)
		assert.Equal(t, "new-critical", out[3].MessageID)
	})
}

func TestSortTextColumns(t *testing.T) {
	records := []domain.EmailRecord{
		record("1", "bob", "zeta", domain.TierHigh, "2026-08-30T09:00:00"),
		record("2", "Alice", "alpha", domain.TierHigh, "2026-08-30T10:00:00"),
	}

	t.Run("发件人列大小写不敏感", func(t *testing.T) {
		out := Sort(records, domain.SortBySender, Ascending)
		assert.Equal(t, "Alice", out[0].Sender)
	})

	t.Run("主题列降序", func(t *testing.T) {
		out := Sort(records, domain.SortBySubject, Descending)
		assert.Equal(t, "zeta", out[0].Subject)
	})

	t.Run("接收时间列", func(t *testing.T) {
		out := Sort(records, domain.SortByReceived, Descending)
		assert.Equal(t, "2", out[0].MessageID)
	})
}

func TestGroupRecords(t *testing.T) {
	now, err := domain.ParseLocalTime("2026-08-30T15:00:00")
	assert.NoError(t, err)

	t.Run("按重要度固定顺序且省略空组", func(t *testing.T) {
		records := []domain.EmailRecord{
			record("m", "a", "s", domain.TierMedium, "2026-08-30T09:00:00"),
			record("c", "b", "s", domain.TierCritical, "2026-08-30T10:00:00"),
		}
		groups := GroupRecords(records, domain.SortByImportance, now)
		assert.Len(t, groups, 2)
		assert.Equal(t, domain.TierCritical, groups[0].Tier)
		assert.Equal(t, "Critical", groups[0].Label)
		assert.Equal(t, domain.TierMedium, groups[1].Tier)
	})

	t.Run("按接收时间分今天本周更早", func(t *testing.T) {
		records := []domain.EmailRecord{
			record("today", "a", "s", domain.TierHigh, "2026-08-30T08:00:00"),
			record("week", "b", "s", domain.TierHigh, "2026-08-27T08:00:00"),
			record("older", "c", "s", domain.TierHigh, "2026-08-01T08:00:00"),
		}
		groups := GroupRecords(records, domain.SortByReceived, now)
		assert.Len(t, groups, 3)
		assert.Equal(t, GroupToday, groups[0].Label)
		assert.Equal(t, GroupThisWeek, groups[1].Label)
		assert.Equal(t, GroupOlder, groups[2].Label)
	})

	t.Run("昨天深夜不算今天", func(t *testing.T) {
		records := []domain.EmailRecord{
			record("late", "a", "s", domain.TierHigh, "2026-08-29T23:59:00"),
		}
		groups := GroupRecords(records, domain.SortByReceived, now)
		assert.Len(t, groups, 1)
		assert.Equal(t, GroupThisWeek, groups[0].Label)
	})

	t.Run("其他列合成单组", func(t *testing.T) {
		records := []domain.EmailRecord{
			record("1", "a", "s", domain.TierHigh, "2026-08-30T08:00:00"),
		}
		groups := GroupRecords(records, domain.SortBySender, now)
		assert.Len(t, groups, 1)
		assert.Equal(t, GroupAll, groups[0].Label)
	})

	t.Run("空输入返回空分组", func(t *testing.T) {
		assert.Empty(t, GroupRecords(nil, domain.SortByImportance, now))
		assert.Empty(t, GroupRecords(nil, domain.SortBySender, now))
	})
}

func TestPaginate(t *testing.T) {
	var records []domain.EmailRecord
	for i := 0; i < 120; i++ {
		records = append(records, record(string(rune('a'+i%26))+"-"+time.Now().Format("150405"), "s", "s", domain.TierHigh, "2026-08-30T09:00:00"))
	}

	t.Run("整除边界", func(t *testing.T) {
		page, num, count := Paginate(records[:100], 2, 50)
		assert.Len(t, page, 50)
		assert.Equal(t, 2, num)
		assert.Equal(t, 2, count)
	})

	t.Run("末页不足一页", func(t *testing.T) {
		page, num, count := Paginate(records, 3, 50)
		assert.Len(t, page, 20)
		assert.Equal(t, 3, num)
		assert.Equal(t, 3, count)
	})

	t.Run("越界页号被夹紧", func(t *testing.T) {
		page, num, count := Paginate(records, 99, 50)
		assert.Len(t, page, 20)
		assert.Equal(t, 3, num)
		assert.Equal(t, 3, count)

		_, num, _ = Paginate(records, 0, 50)
		assert.Equal(t, 1, num)
	})

	t.Run("空列表也有一页", func(t *testing.T) {
		page, num, count := Paginate(nil, 1, 50)
		assert.Empty(t, page)
		assert.Equal(t, 1, num)
		assert.Equal(t, 1, count)
	})

	t.Run("非法页大小回退默认值", func(t *testing.T) {
		page, _, _ := Paginate(records, 1, 0)
		assert.Len(t, page, domain.DefaultEntriesPerPage)
	})
}

func TestApplyPipelineOrder(t *testing.T) {
	now, err := domain.ParseLocalTime("2026-08-30T15:00:00")
	assert.NoError(t, err)

	var records []domain.EmailRecord
	for i := 0; i < 60; i++ {
		tier := domain.TierMedium
		if i%2 == 0 {
			tier = domain.TierCritical
		}
		r := record("m", "sender", "report", tier, "2026-08-30T09:00:00")
		r.MessageID = r.MessageID + "-" + string(rune('a'+i%26))
		records = append(records, r)
	}
	records = append(records, record("noise", "other", "lunch", domain.TierHigh, "2026-08-30T09:00:00"))

	q := Query{
		Search:    "report",
		SortKey:   domain.SortByImportance,
		Direction: Descending,
		Page:      1,
		PageSize:  50,
		Now:       now,
	}

	t.Run("先过滤再分页", func(t *testing.T) {
		view := Apply(records, q)
		assert.Equal(t, 60, view.Total)
		assert.Equal(t, 2, view.PageCount)

		total := 0
		for _, g := range view.Groups {
			total += len(g.Records)
			for _, r := range g.Records {
				assert.NotEqual(t, "noise", r.MessageID)
			}
		}
		assert.Equal(t, 50, total)
	})

	t.Run("分组只作用于当前页", func(t *testing.T) {
		view := Apply(records, q)
		// 降序排序后第一页全是 Critical
		assert.Len(t, view.Groups, 2)
		assert.Equal(t, domain.TierCritical, view.Groups[0].Tier)
		assert.Len(t, view.Groups[0].Records, 30)
		assert.Len(t, view.Groups[1].Records, 20)
	})

	t.Run("相同输入结果确定", func(t *testing.T) {
		a := Apply(records, q)
		b := Apply(records, q)
		assert.Equal(t, a, b)
	})
}

func TestToggleDirection(t *testing.T) {
	t.Run("同列翻转方向", func(t *testing.T) {
		col, dir := ToggleDirection(domain.SortByImportance, Descending, domain.SortByImportance)
		assert.Equal(t, domain.SortByImportance, col)
		assert.Equal(t, Ascending, dir)
	})

	t.Run("换列重置为降序", func(t *testing.T) {
		col, dir := ToggleDirection(domain.SortByImportance, Ascending, domain.SortBySender)
		assert.Equal(t, domain.SortBySender, col)
		assert.Equal(t, Descending, dir)
	})
}
