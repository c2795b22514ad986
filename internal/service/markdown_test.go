package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStripMarkdown(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"纯文本原样保留", "退款需在 7 天内申请。", "退款需在 7 天内申请。"},
		{"粗体", "退款需在 **7 天内** 申请。", "退款需在 7 天内 申请。"},
		{"下划线粗体", "__重要__提示", "重要提示"},
		{"斜体", "这是 *强调* 内容", "这是 强调 内容"},
		{"标识符中的下划线保留", "请检查 file_name_here 字段", "请检查 file_name_here 字段"},
		{"多个标识符的下划线保留", "把 user_id 和 channel_id 传给接口", "把 user_id 和 channel_id 传给接口"},
		{"行内代码", "请运行 `camaral login` 命令", "请运行 camaral login 命令"},
		{"代码块", "示例：\n```bash\ncamaral login\n```", "示例：\ncamaral login"},
		{"链接保留文字", "详见 [帮助中心](https://example.com/help)。", "详见 帮助中心。"},
		{"图片保留替代文本", "![流程图](https://example.com/a.png)", "流程图"},
		{"标题", "# 退款政策\n内容", "退款政策\n内容"},
		{"引用", "> 注意事项\n正文", "注意事项\n正文"},
		{"首尾空白", "  你好  ", "你好"},
		{"空字符串", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StripMarkdown(tt.in))
		})
	}
}
