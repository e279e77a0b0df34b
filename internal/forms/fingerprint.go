package forms

import (
	"crypto/md5"
	"encoding/hex"
)

// Fingerprint 计算版本指纹：按 schema 顺序对每个值的规范字符串做 MD5，值之间以 NUL 分隔
func Fingerprint(values []string) string {
	h := md5.New()
	for _, v := range values {
		h.Write([]byte(v))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}
