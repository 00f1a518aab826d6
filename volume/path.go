package volume

import "strings"

// canonicalizePath strips a leading '/', collapses '.' and '..' segments,
// and preserves the original case. Fails on empty input.
func canonicalizePath(path string) ([]string, error) {
	if path == "" {
		return nil, newErr("canonicalize_path", CodeBadPath, nil)
	}
	path = strings.TrimPrefix(path, "/")
	if path == "" {
		return nil, nil
	}

	var out []string
	for _, part := range strings.Split(path, "/") {
		switch part {
		case "", ".":
			continue
		case "..":
			if len(out) > 0 {
				out = out[:len(out)-1]
			}
		default:
			out = append(out, part)
		}
	}
	return out, nil
}

// splitDirBase splits a canonicalized path into its directory components
// and final basename. If there is only one component, dir is empty.
func splitDirBase(parts []string) (dir []string, base string, err error) {
	if len(parts) == 0 {
		return nil, "", newErr("split_path", CodeBadPath, nil)
	}
	return parts[:len(parts)-1], parts[len(parts)-1], nil
}

// resolveDirectoryName walks a directory path one component at a time
// starting from the root inode.
func (m *Mount) resolveDirectoryName(parts []string) (inodeIndex, error) {
	current := m.rootInode
	for _, part := range parts {
		next, _, err := m.findFileInDirectory(current, part)
		if err != nil {
			return 0, err
		}
		n, err := m.readInode(next)
		if err != nil {
			return 0, err
		}
		if !n.hasAttr(AttrDirectory) {
			return 0, newErr("resolve_directory_name", CodeBadPath, nil)
		}
		current = next
	}
	return current, nil
}

// resolveFileName resolves a full path to its file inode and the inode of
// its containing directory.
func (m *Mount) resolveFileName(path string) (fileInode, dirInode inodeIndex, err error) {
	parts, err := canonicalizePath(path)
	if err != nil {
		return 0, 0, err
	}
	dirParts, base, err := splitDirBase(parts)
	if err != nil {
		return 0, 0, err
	}
	dirInode, err = m.resolveDirectoryName(dirParts)
	if err != nil {
		return 0, 0, err
	}
	fileInode, _, err = m.findFileInDirectory(dirInode, base)
	if err != nil {
		return 0, dirInode, err
	}
	return fileInode, dirInode, nil
}
