package inspector

import (
	"strings"

	"webprobe/pkg/domain"
	"webprobe/pkg/errx"

	"github.com/google/uuid"
	"github.com/mafredri/cdp/protocol/runtime"
	"github.com/tidwall/gjson"
)

// 脚本执行结果文本
const (
	injectOK          = "JS inject: ok"
	injectResultLabel = "JS inject result: "
	injectErrorLabel  = "JS inject error: "
)

// Inject 异步执行用户脚本，结果或错误写入控制台日志。
// 返回本次执行的 ID；没有超时，未返回的执行保留在在途列表中。
func (i *Inspector) Inject(src string) (string, error) {
	src = strings.TrimSpace(domain.NormalizeQuotes(src))
	if src == "" {
		return "", domain.ErrEmptyScript
	}
	client, ctx, err := i.attached()
	if err != nil {
		return "", err
	}

	id := uuid.New().String()
	if i.tracker != nil {
		i.tracker.Add(id, src)
	}

	submitted := i.pool.Submit(func() {
		reply, err := client.Runtime.Evaluate(ctx, runtime.NewEvaluateArgs(src).
			SetReturnByValue(true).
			SetAwaitPromise(true))
		i.finishEval(id, reply, err)
	})
	if !submitted {
		if i.tracker != nil {
			i.tracker.Done(id)
		}
		i.store.AppendConsole(domain.ConsoleLevelError, injectErrorLabel+"evaluation queue full")
		return "", errx.New(errx.CodeEvalFailed, "evaluation queue full")
	}
	i.log.Debug("提交脚本执行", "id", id, "size", len(src))
	return id, nil
}

func (i *Inspector) finishEval(id string, reply *runtime.EvaluateReply, err error) {
	if i.tracker != nil {
		i.tracker.Done(id)
	}
	level, msg := FormatEvalResult(reply, err)
	i.store.AppendConsole(level, msg)
	if level == domain.ConsoleLevelError {
		i.log.Debug("脚本执行失败", "id", id, "message", msg)
	}
	if i.onState != nil {
		i.onState(i.State())
	}
}

// FormatEvalResult 将执行结果转换为控制台日志
func FormatEvalResult(reply *runtime.EvaluateReply, err error) (domain.ConsoleLevel, string) {
	if err != nil {
		return domain.ConsoleLevelError, injectErrorLabel + err.Error()
	}
	if reply == nil {
		return domain.ConsoleLevelLog, injectOK
	}
	if reply.ExceptionDetails != nil {
		return domain.ConsoleLevelError, injectErrorLabel + describeException(reply.ExceptionDetails)
	}

	res := reply.Result
	if res.Type == "undefined" {
		return domain.ConsoleLevelLog, injectOK
	}
	if len(res.Value) > 0 {
		v := gjson.ParseBytes(res.Value)
		if v.Type == gjson.String {
			return domain.ConsoleLevelLog, injectResultLabel + v.Str
		}
		return domain.ConsoleLevelLog, injectResultLabel + v.Raw
	}
	if res.UnserializableValue != nil {
		return domain.ConsoleLevelLog, injectResultLabel + string(*res.UnserializableValue)
	}
	if res.Description != nil {
		return domain.ConsoleLevelLog, injectResultLabel + *res.Description
	}
	return domain.ConsoleLevelLog, injectResultLabel + res.Type
}

// describeException 取异常描述的首行，没有时使用异常文本
func describeException(d *runtime.ExceptionDetails) string {
	if d.Exception != nil && d.Exception.Description != nil {
		desc := *d.Exception.Description
		if idx := strings.IndexByte(desc, '\n'); idx >= 0 {
			desc = desc[:idx]
		}
		if desc != "" {
			return desc
		}
	}
	if d.Exception != nil && len(d.Exception.Value) > 0 {
		v := gjson.ParseBytes(d.Exception.Value)
		if v.Type == gjson.String {
			return v.Str
		}
		return v.Raw
	}
	return d.Text
}
