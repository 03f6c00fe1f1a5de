package script_test

import (
	"testing"

	"webprobe/internal/bridge"
	"webprobe/internal/logstore"
	"webprobe/internal/script"
	"webprobe/pkg/domain"

	"github.com/dop251/goja"
)

// pageGlobals 模拟页面环境中脚本用到的全局对象
const pageGlobals = `
var window = this;
var location = { href: "https://page.test/app/" };

var __listeners = {};
function addEventListener(type, fn) { (__listeners[type] = __listeners[type] || []).push(fn); }
function __dispatch(type, ev) { (__listeners[type] || []).forEach(function (fn) { fn(ev); }); }

var __passthrough = [];
function __record(level) {
  return function () {
    __passthrough.push([level].concat(Array.prototype.slice.call(arguments)));
    return level + "-ret";
  };
}
var console = { log: __record("log"), warn: __record("warn"), error: __record("error") };

var __nextFetch = null;
function fetch(input, init) { return __nextFetch; }

function XMLHttpRequest() { this.status = 0; this.__loadend = []; this.__sends = 0; }
XMLHttpRequest.prototype.open = function (method, url) { this.__opened = [method, url]; };
XMLHttpRequest.prototype.send = function () { this.__sends++; };
XMLHttpRequest.prototype.addEventListener = function (type, fn) {
  if (type === "loadend") { this.__loadend.push(fn); }
};
function __finish(xhr, status) {
  xhr.status = status;
  xhr.__loadend.forEach(function (fn) { fn.call(xhr); });
}

var __buffered = [];
var performance = { getEntriesByType: function (t) { return t === "resource" ? __buffered : []; } };
var __observers = [];
function PerformanceObserver(cb) { this.cb = cb; __observers.push(this); }
PerformanceObserver.prototype.observe = function (opts) { this.opts = opts; };
function __emitResources(entries) {
  __observers.forEach(function (o) { o.cb({ getEntries: function () { return entries; } }); });
}
`

type page struct {
	vm   *goja.Runtime
	msgs []string
}

// newPage 准备页面环境，执行 setup 后安装监控脚本
func newPage(t *testing.T, setup ...string) *page {
	t.Helper()
	p := &page{vm: goja.New()}
	if err := p.vm.Set(script.DefaultBindingName, func(msg string) {
		p.msgs = append(p.msgs, msg)
	}); err != nil {
		t.Fatalf("注册绑定失败: %v", err)
	}
	p.run(t, pageGlobals)
	for _, s := range setup {
		p.run(t, s)
	}
	p.run(t, script.Source(""))
	return p
}

func (p *page) run(t *testing.T, src string) goja.Value {
	t.Helper()
	v, err := p.vm.RunString(src)
	if err != nil {
		t.Fatalf("执行脚本失败: %v", err)
	}
	return v
}

// store 将收到的消息交给接收器，返回写入后的日志
func (p *page) store(t *testing.T) *logstore.Store {
	t.Helper()
	s := logstore.New(100)
	r := bridge.NewReceiver(s, bridge.Options{})
	for _, m := range p.msgs {
		if err := r.Receive(m); err != nil {
			t.Errorf("消息无法解析: %s: %v", m, err)
		}
	}
	return s
}

type wantRequest struct {
	kind   domain.RequestKind
	method string
	url    string
	status int
}

func assertRequests(t *testing.T, got []domain.RequestEntry, want []wantRequest) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("请求条目数 = %d, want %d: %+v", len(got), len(want), got)
	}
	for i, w := range want {
		g := got[i]
		if g.Kind != w.kind || g.Method != w.method || g.URL != w.url || g.StatusCode() != w.status {
			t.Errorf("第 %d 条 = %s %s %q %d, want %s %s %q %d",
				i, g.Kind, g.Method, g.URL, g.StatusCode(), w.kind, w.method, w.url, w.status)
		}
	}
}

func TestInstrument_ConsolePassthrough(t *testing.T) {
	p := newPage(t)
	ret := p.run(t, `console.log("a", 1, {k: "v"}, null, undefined)`)
	p.run(t, `console.warn("careful"); console.error(new Error("boom"))`)

	if ret.String() != "log-ret" {
		t.Errorf("应返回原方法的返回值，实际 %s", ret)
	}
	if n := p.run(t, `__passthrough.length`).ToInteger(); n != 3 {
		t.Errorf("原方法应被调用 3 次，实际 %d", n)
	}

	got := p.store(t).Console()
	want := []struct {
		level   domain.ConsoleLevel
		message string
	}{
		{domain.ConsoleLevelLog, `a 1 {"k":"v"} null undefined`},
		{domain.ConsoleLevelWarn, "careful"},
		{domain.ConsoleLevelError, "Error: boom"},
	}
	if len(got) != len(want) {
		t.Fatalf("控制台条目数 = %d, want %d", len(got), len(want))
	}
	for i, w := range want {
		if got[i].Level != w.level || got[i].Message != w.message {
			t.Errorf("第 %d 条 = %s %q, want %s %q", i, got[i].Level, got[i].Message, w.level, w.message)
		}
	}
}

func TestInstrument_JSErrors(t *testing.T) {
	p := newPage(t)
	p.run(t, `
		__dispatch("error", { target: window, message: "Uncaught TypeError: x", filename: "https://page.test/app.js", lineno: 3, colno: 7 });
		__dispatch("error", { target: { tagName: "IMG" }, message: "" });
		__dispatch("unhandledrejection", { reason: new Error("nope") });
		__dispatch("unhandledrejection", { reason: "plain" });
	`)

	got := p.store(t).Console()
	want := []string{
		"Uncaught TypeError: x (https://page.test/app.js:3:7)",
		"nope (promise)",
		"plain (promise)",
	}
	if len(got) != len(want) {
		t.Fatalf("控制台条目数 = %d, want %d: %+v", len(got), len(want), got)
	}
	for i, w := range want {
		if got[i].Level != domain.ConsoleLevelError || got[i].Message != w {
			t.Errorf("第 %d 条 = %s %q, want error %q", i, got[i].Level, got[i].Message, w)
		}
	}
}

func TestInstrument_FetchReturnsOriginalPromise(t *testing.T) {
	p := newPage(t)
	same := p.run(t, `
		var ok = Promise.resolve({ status: 404 });
		__nextFetch = ok;
		fetch("https://api.test/items", { method: "post" }) === ok;
	`)
	if !same.ToBoolean() {
		t.Error("fetch 应原样返回页面得到的 Promise")
	}

	p.run(t, `
		var caught = "";
		__nextFetch = Promise.reject(new Error("offline"));
		fetch({ url: "https://api.test/down", method: "PUT" }).catch(function (e) { caught = e.message; });
	`)
	if c := p.run(t, `caught`).String(); c != "offline" {
		t.Errorf("页面自己的 catch 应收到原始错误，实际 %q", c)
	}

	assertRequests(t, p.store(t).Requests(), []wantRequest{
		{domain.RequestKindFetch, "POST", "https://api.test/items", 0},
		{domain.RequestKindFetch, "POST", "404 https://api.test/items", 404},
		{domain.RequestKindFetch, "PUT", "https://api.test/down", 0},
	})
}

func TestInstrument_XHRReuse(t *testing.T) {
	p := newPage(t)
	p.run(t, `
		var x = new XMLHttpRequest();
		x.open("get", "https://api.test/a");
		x.send();
		__finish(x, 200);
		x.open("POST", "https://api.test/b");
		x.send();
		__finish(x, 500);
	`)

	if n := p.run(t, `x.__sends`).ToInteger(); n != 2 {
		t.Errorf("原 send 应被调用 2 次，实际 %d", n)
	}
	if n := p.run(t, `x.__loadend.length`).ToInteger(); n != 1 {
		t.Errorf("同一实例只应挂一个 loadend 监听，实际 %d", n)
	}
	assertRequests(t, p.store(t).Requests(), []wantRequest{
		{domain.RequestKindXHR, "GET", "https://api.test/a", 0},
		{domain.RequestKindXHR, "GET", "200 https://api.test/a", 200},
		{domain.RequestKindXHR, "POST", "https://api.test/b", 0},
		{domain.RequestKindXHR, "POST", "500 https://api.test/b", 500},
	})
}

func TestInstrument_XHRMethodAtSend(t *testing.T) {
	p := newPage(t)
	p.run(t, `
		var x = new XMLHttpRequest();
		x.open("delete", "https://api.test/c");
		x.send();
		x.open("GET", "https://api.test/ignored");
		__finish(x, 204);
	`)

	assertRequests(t, p.store(t).Requests(), []wantRequest{
		{domain.RequestKindXHR, "DELETE", "https://api.test/c", 0},
		{domain.RequestKindXHR, "DELETE", "204 https://api.test/c", 204},
	})
}

func TestInstrument_Resources(t *testing.T) {
	p := newPage(t, `__buffered = [{ name: "https://cdn.test/a.css", initiatorType: "link" }];`)
	p.run(t, `__emitResources([{ name: "https://cdn.test/b.png", initiatorType: "img" }, { name: "" }, { name: "https://cdn.test/c" }]);`)

	assertRequests(t, p.store(t).Requests(), []wantRequest{
		{domain.RequestKindResource, "link", "https://cdn.test/a.css", 0},
		{domain.RequestKindResource, "img", "https://cdn.test/b.png", 0},
		{domain.RequestKindResource, "resource", "https://cdn.test/c", 0},
	})
}

// TestInstrument_BindingFailureContained 绑定抛错时页面行为不受影响
func TestInstrument_BindingFailureContained(t *testing.T) {
	p := newPage(t, `window.__webprobeBridge = function () { throw new Error("bridge down"); };`)
	same := p.run(t, `
		console.log("still works");
		__dispatch("error", { target: window, message: "x" });
		var x = new XMLHttpRequest();
		x.open("GET", "https://api.test/a");
		x.send();
		__finish(x, 200);
		var r = Promise.resolve({ status: 200 });
		__nextFetch = r;
		fetch("https://api.test/b") === r;
	`)

	if !same.ToBoolean() {
		t.Error("绑定失败时 fetch 仍应返回原 Promise")
	}
	if n := p.run(t, `__passthrough.length`).ToInteger(); n != 1 {
		t.Errorf("绑定失败时原 console 方法仍应被调用，实际 %d 次", n)
	}
	if len(p.msgs) != 0 {
		t.Errorf("不应有消息送达，实际 %d 条", len(p.msgs))
	}
}

func TestInstrument_InstallOnce(t *testing.T) {
	p := newPage(t)
	p.run(t, script.Source(""))
	p.run(t, `console.log("once")`)

	if got := p.store(t).Console(); len(got) != 1 {
		t.Errorf("重复注入不应重复包装，实际 %d 条", len(got))
	}
	if n := p.run(t, `__passthrough.length`).ToInteger(); n != 1 {
		t.Errorf("原方法应只调用一次，实际 %d", n)
	}
}
