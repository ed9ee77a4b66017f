package methods

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"strings"
)

func Sha1Str(data string) string {

	// 创建一个 SHA1 哈希对象
	hash := sha1.New()

	// 将数据写入哈希对象
	hash.Write([]byte(data))

	// 获取哈希结果并转换为十六进制字符串
	sha1Bytes := hash.Sum(nil)
	sha1String := hex.EncodeToString(sha1Bytes)

	return sha1String
}

// EncodeNonASCII 对URL中的非ASCII字节做百分号编码，其余字符原样保留
func EncodeNonASCII(url string) string {
	var builder strings.Builder
	for _, b := range []byte(url) {
		if b < 0x20 || b > 0x7f {
			builder.WriteString(fmt.Sprintf("%%%02X", b))
		} else {
			builder.WriteByte(b)
		}
	}
	return builder.String()
}
