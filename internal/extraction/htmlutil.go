// мелкие помощники для обхода дерева x/net/html
// стратегиям хватает поиска по предикату, чтения атрибутов и сбора текста
package extraction

import (
	"strings"

	"golang.org/x/net/html"
)

// findAll обходит дерево в глубину и собирает узлы, подходящие под предикат
func findAll(root *html.Node, pred func(*html.Node) bool) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if pred(n) {
			out = append(out, n)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return out
}

// findFirst возвращает первый узел, подходящий под предикат
func findFirst(root *html.Node, pred func(*html.Node) bool) *html.Node {
	nodes := findAll(root, pred)
	if len(nodes) == 0 {
		return nil
	}
	return nodes[0]
}

// attrVal возвращает значение атрибута элемента
func attrVal(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

// hasClassToken проверяет, содержит ли class элемента подстроку (без учёта регистра)
func hasClassToken(n *html.Node, token string) bool {
	return strings.Contains(strings.ToLower(attrVal(n, "class")), token)
}

// isElem проверяет, что узел - элемент с одним из указанных тегов
func isElem(n *html.Node, tags ...string) bool {
	if n.Type != html.ElementNode {
		return false
	}
	for _, t := range tags {
		if n.Data == t {
			return true
		}
	}
	return false
}

// nodeText собирает весь текст поддерева, схлопывая пробелы
func nodeText(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
			b.WriteString(" ")
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(strings.Fields(b.String()), " ")
}
