package utils

import (
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"
)

const DateLayout = "2006-01-02"

func GetCSTTimeLocation() *time.Location {
	loc, err := time.LoadLocation("Asia/Shanghai")
	if err != nil {
		log.Printf("Failed to load location Asia/Shanghai, using fixed offset: %v", err)
		return time.FixedZone("CST", 8*60*60)
	}
	return loc
}

func TimeNowCST() time.Time {
	return time.Now().In(GetCSTTimeLocation())
}

func PrettyDate(date time.Time) string {
	return date.In(GetCSTTimeLocation()).Format("2006年01月02日 15:04")
}

// ParseFlexibleDate accepts a YYYY-MM-DD / YYYYMMDD string or a unix
// timestamp in milliseconds and returns the CST calendar date as YYYY-MM-DD.
func ParseFlexibleDate(value interface{}) (string, error) {
	switch v := value.(type) {
	case nil:
		return "", fmt.Errorf("empty date")
	case float64:
		return msToDate(int64(v)), nil
	case int64:
		return msToDate(v), nil
	case int:
		return msToDate(int64(v)), nil
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return "", fmt.Errorf("empty date")
		}
		if t, err := time.Parse(DateLayout, s); err == nil {
			return t.Format(DateLayout), nil
		}
		if t, err := time.Parse("20060102", s); err == nil {
			return t.Format(DateLayout), nil
		}
		if ms, err := strconv.ParseInt(s, 10, 64); err == nil && len(s) >= 12 {
			return msToDate(ms), nil
		}
		if t, err := time.Parse(time.RFC3339, s); err == nil {
			return t.In(GetCSTTimeLocation()).Format(DateLayout), nil
		}
		return "", fmt.Errorf("unsupported date format: %q", s)
	default:
		return "", fmt.Errorf("unsupported date type %T", value)
	}
}

func msToDate(ms int64) string {
	return time.UnixMilli(ms).In(GetCSTTimeLocation()).Format(DateLayout)
}

// CompactDate converts YYYY-MM-DD into YYYYMMDD.
func CompactDate(date string) string {
	return strings.ReplaceAll(date, "-", "")
}
