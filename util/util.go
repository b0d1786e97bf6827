package util

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gookit/slog"
)

func Mkdir(dirName string) error {
	if _, err := os.Stat(dirName); os.IsNotExist(err) {
		err := os.MkdirAll(dirName, 0775)
		if err != nil {
			return fmt.Errorf("mkdir(%s) -> %w", dirName, err)
		}
	}
	return nil
}

func InSlice[T comparable](target T, list []T) bool {
	for i := range list {
		if target == list[i] {
			return true
		}
	}
	return false
}

// Subtract returns the elements of list that are not in other, keeping order.
func Subtract[T comparable](list, other []T) []T {
	res := make([]T, 0)
	for _, v := range list {
		if !InSlice(v, other) {
			res = append(res, v)
		}
	}
	return res
}

// EncloseStr wraps str in mark, doubling any mark inside it.
func EncloseStr(str string, mark string) string {
	return mark + strings.ReplaceAll(str, mark, mark+mark) + mark
}

func TimeCost() func(str string) {
	bts := time.Now()
	return func(str string) {
		second := int(time.Since(bts).Seconds())
		slog.Infof("%s, took %ds", str, second)
	}
}

func WriteFile(filename string, text string) error {
	if dir := filepath.Dir(filename); dir != "." {
		if err := Mkdir(dir); err != nil {
			return fmt.Errorf("WriteFile -> %w", err)
		}
	}
	err := os.WriteFile(filename, []byte(text), 0664)
	if err != nil {
		return fmt.Errorf("WriteFile(%s) -> %w", filename, err)
	}
	return nil
}
