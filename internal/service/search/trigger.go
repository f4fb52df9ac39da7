package search

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Category 表示触发联网搜索的话题类别。
type Category string

const (
	None     Category = "none"
	News     Category = "news"
	Weather  Category = "weather"
	Finance  Category = "finance"
	Recency  Category = "recency"
	Calendar Category = "calendar"
)

// Decision 是触发器的判定结果。
type Decision struct {
	Category Category
	Score    int
}

// Fire reports whether the decision calls for a search.
func (d Decision) Fire() bool {
	return d.Score >= triggerThreshold
}

const (
	keywordWeight    = 3
	datePatternBoost = 3
	triggerThreshold = 3
)

var keywordBuckets = map[Category][]string{
	News: {
		"новости", "новость", "новостей", "произошло", "случилось", "событи", "заявил", "объявил",
		"news", "headline",
	},
	Weather: {
		"погода", "погоду", "погоде", "прогноз", "температур", "осадки", "weather", "forecast",
	},
	Finance: {
		"курс", "цена", "цены", "стоимость", "стоит", "биткоин", "bitcoin", "доллар", "евро", "рубл",
		"акции", "котировк", "инфляци", "exchange rate", "price",
	},
	Recency: {
		"сегодня", "сейчас", "вчера", "завтра", "последние", "последний", "последняя", "актуальн",
		"текущ", "на данный момент", "в этом году", "недавно", "today", "now", "latest", "current",
	},
}

var (
	yearPattern  = regexp.MustCompile(`\b202[0-9]\b`)
	monthPattern = regexp.MustCompile(`(^|[^\p{L}])(январ[ьяе]|феврал[ьяе]|марта?|марте|апрел[ьяе]|ма[йяе]|июн[ьяе]|июл[ьяе]|августа?|августе|сентябр[ьяе]|октябр[ьяе]|ноябр[ьяе]|декабр[ьяе])($|[^\p{L}])`)
	datePattern  = regexp.MustCompile(`\b(0?[1-9]|[12][0-9]|3[01])\.(0?[1-9]|1[0-2])\b`)
)

// NeedsSearch reports whether text asks about something time-sensitive.
func NeedsSearch(text string) bool {
	return Classify(text).Fire()
}

// Classify 对文本按关键词与日期模式打分，返回得分最高的类别。
func Classify(text string) Decision {
	normalized := strings.TrimSpace(strings.ToLower(text))
	if normalized == "" {
		return Decision{Category: None}
	}

	scores := make(map[Category]int)
	for category, keywords := range keywordBuckets {
		for _, word := range keywords {
			if containsWord(normalized, word) {
				scores[category] += keywordWeight
			}
		}
	}

	if yearPattern.MatchString(normalized) || monthPattern.MatchString(normalized) || datePattern.MatchString(normalized) {
		scores[Calendar] += datePatternBoost
	}

	best := None
	bestScore := 0
	for _, category := range []Category{News, Weather, Finance, Recency, Calendar} {
		if s := scores[category]; s > bestScore {
			best, bestScore = category, s
		}
	}

	total := 0
	for _, s := range scores {
		total += s
	}
	return Decision{Category: best, Score: total}
}

// containsWord 匹配词首，避免 "now" 命中 "know" 这类情况。
func containsWord(text, word string) bool {
	for start := 0; ; {
		idx := strings.Index(text[start:], word)
		if idx < 0 {
			return false
		}
		pos := start + idx
		if prev, _ := utf8.DecodeLastRuneInString(text[:pos]); pos == 0 || !unicode.IsLetter(prev) {
			return true
		}
		start = pos + len(word)
	}
}
