package core

import (
	"errors"
	"fmt"
)

// 数据库加载只有两种致命失败，二者都不返回任何可部分信任的结果：
//   - ErrSchemaViolation: 结构非法（缺字段、类型错误、摘要长度不对、多余属性）
//   - ErrChecksumMismatch: 结构合法但整库摘要对不上，数据库本体被篡改或损坏
//
// 校验次序固定：先结构后摘要。结构都不合法的文件，摘要比较没有意义。
var (
	ErrSchemaViolation  = errors.New("schema violation")
	ErrChecksumMismatch = errors.New("checksum mismatch")
)

// schemaErrf 包装一个带上下文的 ErrSchemaViolation
// 调用方用 errors.Is(err, ErrSchemaViolation) 判断类别。
func schemaErrf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrSchemaViolation, fmt.Sprintf(format, args...))
}
