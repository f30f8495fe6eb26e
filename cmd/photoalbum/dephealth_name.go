package main

import (
	"os"
	"regexp"
	"strings"
)

var (
	// <deployment>-<hash ReplicaSet>-<суффикс пода>
	deploymentPodRe = regexp.MustCompile(`^(.+)-[a-z0-9]{6,10}-[a-z0-9]{5}$`)
	// <statefulset>-<ordinal>
	statefulSetPodRe = regexp.MustCompile(`^(.+)-\d+$`)
)

// parseOwnerName извлекает имя владельца пода (Deployment или StatefulSet)
// из hostname. Если формат не распознан, возвращает hostname как есть.
func parseOwnerName(hostname string) string {
	if m := deploymentPodRe.FindStringSubmatch(hostname); m != nil {
		return m[1]
	}
	if m := statefulSetPodRe.FindStringSubmatch(hostname); m != nil {
		return m[1]
	}
	return hostname
}

// dephealthServiceName — имя вершины графа зависимостей.
// В Kubernetes — имя владельца пода, иначе fallback.
func dephealthServiceName(fallback string) string {
	hostname, err := os.Hostname()
	if err != nil || strings.TrimSpace(hostname) == "" {
		return fallback
	}
	return parseOwnerName(hostname)
}
