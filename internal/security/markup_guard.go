// Package security はアプリケーションのセキュリティ機能を提供する。
//
// MarkupGuard は芳名録などの利用者入力にHTMLマークアップが含まれるかを判定する。
// 入力を書き換えることはせず、保存値は常に入力そのものになる。
// 出力側はJSONエンコードとhtml/templateのエスケープに任せる。
package security

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// activeElements はテキスト中に現れた時点でマークアップとみなす要素。
var activeElements = map[atom.Atom]bool{
	atom.Script: true, atom.Style: true, atom.Iframe: true, atom.Frame: true,
	atom.Frameset: true, atom.Object: true, atom.Embed: true, atom.Img: true,
	atom.Svg: true, atom.Math: true, atom.Link: true, atom.Meta: true,
	atom.Base: true, atom.Form: true, atom.Input: true, atom.Button: true,
	atom.Textarea: true, atom.Video: true, atom.Audio: true, atom.Source: true,
}

// activeAttributes はURLやスタイルを持ち込める属性。on*属性は別途判定する。
var activeAttributes = map[string]bool{
	"href": true, "src": true, "srcdoc": true, "srcset": true,
	"style": true, "action": true, "formaction": true, "xlink:href": true,
}

// MarkupGuard はHTMLトークナイザーでマークアップを検出する。
type MarkupGuard struct{}

// NewMarkupGuard はMarkupGuardを生成する。
func NewMarkupGuard() *MarkupGuard {
	return &MarkupGuard{}
}

// ContainsMarkup は raw がHTMLとして解釈されうるマークアップを含むかを返す。
// 次のいずれかに該当すればマークアップとみなす。
//   - activeElements の要素
//   - on* 属性または activeAttributes の属性を持つタグ
//   - 既知の要素の開始タグと、それに対応する終了タグの組
//
// "x<y and y>z" や "a<b and c>d" のような比較表現はマークアップとみなさない。
func (g *MarkupGuard) ContainsMarkup(raw string) bool {
	if !strings.ContainsRune(raw, '<') {
		return false
	}

	opened := map[atom.Atom]bool{}
	z := html.NewTokenizer(strings.NewReader(raw))
	for {
		switch z.Next() {
		case html.ErrorToken:
			// io.EOF を含め、以降にトークンはない
			return false
		case html.StartTagToken, html.SelfClosingTagToken:
			name, hasAttr := z.TagName()
			a := atom.Lookup(name)
			if activeElements[a] {
				return true
			}
			for hasAttr {
				var key []byte
				key, _, hasAttr = z.TagAttr()
				k := strings.ToLower(string(key))
				if strings.HasPrefix(k, "on") || activeAttributes[k] {
					return true
				}
			}
			if a != 0 {
				opened[a] = true
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			if a := atom.Lookup(name); a != 0 && opened[a] {
				return true
			}
		}
	}
}
